// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package timing implements the mutex-guarded timing windows used to decide
// when sustained detection triggers a capture and when auto mode gives up.
package timing

import (
	"sync"
	"time"

	"github.com/ManuGH/capflow/internal/capture/clock"
)

// Window is a start timestamp plus a required or timeout duration.
// It is safe for concurrent use; the lock is held only for the read or write.
type Window struct {
	mu        sync.Mutex
	clock     clock.Clock
	duration  time.Duration
	startedAt time.Time
	active    bool
}

// NewWindow returns an inactive window measuring d.
func NewWindow(c clock.Clock, d time.Duration) *Window {
	return &Window{clock: c, duration: d}
}

// Start activates the window. An earlier start is never moved; the return
// value reports whether this call did the activation.
func (w *Window) Start() bool {
	now := w.clock.Now()
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.active {
		return false
	}
	w.startedAt = now
	w.active = true
	return true
}

// Reset clears the window to inactive.
func (w *Window) Reset() {
	w.mu.Lock()
	w.active = false
	w.startedAt = time.Time{}
	w.mu.Unlock()
}

// Active reports whether the window has been started and not reset.
func (w *Window) Active() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

// ElapsedAtLeast reports whether the window is active and d has passed since Start.
func (w *Window) ElapsedAtLeast(d time.Duration) bool {
	now := w.clock.Now()
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.active {
		return false
	}
	return now.Sub(w.startedAt) >= d
}

// Elapsed reports whether the window's own duration has passed.
func (w *Window) Elapsed() bool {
	return w.ElapsedAtLeast(w.duration)
}

// StartedAt returns the activation time, or the zero time when inactive.
func (w *Window) StartedAt() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.startedAt
}
