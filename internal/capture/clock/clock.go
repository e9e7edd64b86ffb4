// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package clock abstracts wall-clock time and timers so capture timing is
// deterministic under test.
package clock

import (
	"sync"
	"time"
)

// Clock supplies the current time and schedulable timers.
type Clock interface {
	Now() time.Time

	// AfterFunc calls f once in its own goroutine after d elapses.
	AfterFunc(d time.Duration, f func()) Timer

	// Every calls f repeatedly every d until the returned timer is stopped.
	Every(d time.Duration, f func()) Timer
}

// Timer is a cancellable scheduled callback.
type Timer interface {
	// Stop prevents future firings. It reports whether the timer was still pending.
	Stop() bool
}

// Real implements Clock using the standard time package.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func (Real) Every(d time.Duration, f func()) Timer {
	t := &realTicker{ticker: time.NewTicker(d), done: make(chan struct{})}
	go t.loop(f)
	return t
}

type realTicker struct {
	ticker *time.Ticker
	once   sync.Once
	done   chan struct{}
}

func (t *realTicker) loop(f func()) {
	for {
		select {
		case <-t.done:
			return
		case <-t.ticker.C:
			select {
			case <-t.done:
				return
			default:
			}
			f()
		}
	}
}

func (t *realTicker) Stop() bool {
	stopped := false
	t.once.Do(func() {
		t.ticker.Stop()
		close(t.done)
		stopped = true
	})
	return stopped
}
