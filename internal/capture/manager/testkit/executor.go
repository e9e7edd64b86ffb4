// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package testkit

import "sync"

// InlineExecutor runs work on the calling goroutine.
type InlineExecutor struct{}

func (InlineExecutor) Go(fn func()) bool {
	fn()
	return true
}

// QueueExecutor holds work until the test releases it, so tests can
// interleave events between dispatch and completion.
type QueueExecutor struct {
	mu    sync.Mutex
	queue []func()
}

func (q *QueueExecutor) Go(fn func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queue = append(q.queue, fn)
	return true
}

// Len returns the number of queued calls.
func (q *QueueExecutor) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

// Step runs the oldest queued call and reports whether there was one.
func (q *QueueExecutor) Step() bool {
	q.mu.Lock()
	if len(q.queue) == 0 {
		q.mu.Unlock()
		return false
	}
	fn := q.queue[0]
	q.queue = q.queue[1:]
	q.mu.Unlock()
	fn()
	return true
}

// Drain runs queued calls, including ones they enqueue, until none remain.
func (q *QueueExecutor) Drain() {
	for q.Step() {
	}
}
