// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package evalclient

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ManuGH/capflow/internal/capture/clock"
	"github.com/ManuGH/capflow/internal/metrics"
)

// State represents the circuit breaker state.
type State int

const (
	StateClosed   State = iota // Normal operation, requests allowed
	StateOpen                  // Circuit open, requests blocked
	StateHalfOpen              // Testing if service recovered
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// CircuitBreaker stops calling an upstream that keeps failing. Only
// transport errors, timeouts and 5xx responses count; a 4xx says the
// upstream is healthy.
type CircuitBreaker struct {
	component string
	clock     clock.Clock
	threshold int
	reset     time.Duration

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	probing     bool
}

// NewCircuitBreaker opens after threshold consecutive failures and lets one
// probe through once reset has elapsed.
func NewCircuitBreaker(component string, threshold int, reset time.Duration, clk clock.Clock) *CircuitBreaker {
	if clk == nil {
		clk = clock.Real{}
	}
	if threshold <= 0 {
		threshold = 5
	}
	cb := &CircuitBreaker{component: component, clock: clk, threshold: threshold, reset: reset}
	metrics.SetCircuitBreakerState(component, cb.state.String())
	return cb
}

// Execute runs fn unless the circuit is open.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.allow() {
		return ErrCircuitOpen
	}
	err := fn()
	cb.record(err)
	return err
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if cb.clock.Now().Sub(cb.lastFailure) < cb.reset {
			return false
		}
		cb.setLocked(StateHalfOpen)
	}
	// Half-open admits a single probe at a time.
	if cb.probing {
		return false
	}
	cb.probing = true
	return true
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.probing = false
	if errors.Is(err, context.Canceled) {
		return
	}
	if err == nil || !countsAsFailure(err) {
		cb.failures = 0
		cb.setLocked(StateClosed)
		return
	}
	cb.failures++
	cb.lastFailure = cb.clock.Now()
	if cb.state == StateHalfOpen || cb.failures >= cb.threshold {
		if cb.state != StateOpen {
			metrics.RecordCircuitBreakerTrip(cb.component, kind(err))
		}
		cb.setLocked(StateOpen)
	}
}

func (cb *CircuitBreaker) setLocked(s State) {
	if cb.state == s {
		return
	}
	cb.state = s
	metrics.SetCircuitBreakerState(cb.component, s.String())
}
