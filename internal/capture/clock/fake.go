// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package clock

import (
	"sync"
	"time"
)

// Fake is a manually advanced Clock. Callbacks run synchronously on the
// goroutine calling Advance, in due-time order, without the clock lock held.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	nextID uint64
	timers map[uint64]*fakeTimer
}

type fakeTimer struct {
	f     *Fake
	id    uint64
	at    time.Time
	every time.Duration
	fn    func()
}

// NewFake creates a fake clock starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start, timers: make(map[uint64]*fakeTimer)}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	return f.schedule(d, 0, fn)
}

func (f *Fake) Every(d time.Duration, fn func()) Timer {
	if d <= 0 {
		d = time.Nanosecond
	}
	return f.schedule(d, d, fn)
}

func (f *Fake) schedule(d, every time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	t := &fakeTimer{f: f, id: f.nextID, at: f.now.Add(d), every: every, fn: fn}
	f.timers[t.id] = t
	return t
}

func (t *fakeTimer) Stop() bool {
	t.f.mu.Lock()
	defer t.f.mu.Unlock()
	if _, ok := t.f.timers[t.id]; !ok {
		return false
	}
	delete(t.f.timers, t.id)
	return true
}

// Advance moves the clock forward by d, firing every timer that falls due.
// Timers scheduled by callbacks fire too if they fall due within the same advance.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		f.mu.Lock()
		var next *fakeTimer
		for _, t := range f.timers {
			if t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) || (t.at.Equal(next.at) && t.id < next.id) {
				next = t
			}
		}
		if next == nil {
			f.now = target
			f.mu.Unlock()
			return
		}
		if next.at.After(f.now) {
			f.now = next.at
		}
		if next.every > 0 {
			next.at = next.at.Add(next.every)
		} else {
			delete(f.timers, next.id)
		}
		fn := next.fn
		f.mu.Unlock()

		fn()
	}
}

// Pending returns the number of scheduled timers.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.timers)
}
