// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package evalclient

import (
	"errors"
	"testing"
	"time"

	"github.com/ManuGH/capflow/internal/capture/clock"
)

var errUpstreamDown = &RequestError{Sentinel: ErrUnavailable, Operation: "test", Err: errors.New("connection refused")}

func TestCircuitBreaker_InitialState(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, 30*time.Second, nil)
	if cb.State() != StateClosed {
		t.Errorf("expected initial state to be closed, got %s", cb.State())
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	cb := NewCircuitBreaker("test", 3, 30*time.Second, clk)

	for i := 0; i < 2; i++ {
		if err := cb.Execute(func() error { return errUpstreamDown }); err == nil {
			t.Fatalf("call %d: expected error", i+1)
		}
		if cb.State() != StateClosed {
			t.Fatalf("call %d: expected closed, got %s", i+1, cb.State())
		}
	}
	_ = cb.Execute(func() error { return errUpstreamDown })
	if cb.State() != StateOpen {
		t.Fatalf("expected open after threshold, got %s", cb.State())
	}

	called := false
	if err := cb.Execute(func() error { called = true; return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Fatal("open circuit must not run the call")
	}
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	cb := NewCircuitBreaker("test", 1, 10*time.Second, clk)
	_ = cb.Execute(func() error { return errUpstreamDown })

	clk.Advance(10 * time.Second)
	// A failed probe reopens immediately.
	_ = cb.Execute(func() error {
		if cb.State() != StateHalfOpen {
			t.Errorf("expected half-open during probe, got %s", cb.State())
		}
		if err := cb.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
			t.Errorf("second concurrent probe must be refused, got %v", err)
		}
		return errUpstreamDown
	})
	if cb.State() != StateOpen {
		t.Fatalf("expected open after failed probe, got %s", cb.State())
	}

	clk.Advance(10 * time.Second)
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if cb.State() != StateClosed {
		t.Fatalf("expected closed after successful probe, got %s", cb.State())
	}
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker("test", 2, time.Minute, nil)
	_ = cb.Execute(func() error { return errUpstreamDown })
	_ = cb.Execute(func() error { return nil })
	_ = cb.Execute(func() error { return errUpstreamDown })
	if cb.State() != StateClosed {
		t.Fatalf("non-consecutive failures must not open the circuit, got %s", cb.State())
	}
}
