// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package policy holds the pure decision rules of a capture session:
// evaluation retry accounting, rejection guidance and detection classification.
package policy

import "github.com/ManuGH/capflow/internal/capture/model"

const (
	DefaultMaxAttempts         = 3
	DefaultMaxTransportRetries = 2
)

// Retry bounds the capture attempts of one side.
// The first MaxAttempts-1 attempts are evaluated; the last one uploads directly.
type Retry struct {
	MaxAttempts         int
	MaxTransportRetries int
}

// DefaultRetry returns the production bounds.
func DefaultRetry() Retry {
	return Retry{MaxAttempts: DefaultMaxAttempts, MaxTransportRetries: DefaultMaxTransportRetries}
}

// Normalize fills zero or negative bounds with defaults.
func (p Retry) Normalize() Retry {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.MaxTransportRetries < 0 {
		p.MaxTransportRetries = DefaultMaxTransportRetries
	}
	return p
}

// ShouldEvaluate reports whether the next capture of the unit goes through evaluation.
func (p Retry) ShouldEvaluate(c model.RetryCounters) bool {
	return c.EvaluationFailures < p.MaxAttempts-1
}

// RetriesLeft is max(0, MaxAttempts - failures).
func (p Retry) RetriesLeft(c model.RetryCounters) int {
	left := p.MaxAttempts - c.EvaluationFailures
	if left < 0 {
		return 0
	}
	return left
}

// RecordRejection counts a content rejection and returns the retries left.
func (p Retry) RecordRejection(c *model.RetryCounters) int {
	c.EvaluationFailures++
	c.TransportErrors = 0
	return p.RetriesLeft(*c)
}

// RecordTransportError counts a transport failure of the pending evaluation and
// reports whether the same request may be resubmitted.
func (p Retry) RecordTransportError(c *model.RetryCounters) bool {
	c.TransportErrors++
	return c.TransportErrors <= p.MaxTransportRetries
}

// Reset clears the counters after the unit uploaded.
func (p Retry) Reset(c *model.RetryCounters) {
	*c = model.RetryCounters{}
}
