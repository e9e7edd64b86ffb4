// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package evalclient

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrUnavailable  = errors.New("upstream: host unreachable or transport failure")
	ErrTimeout      = errors.New("upstream: request timed out")
	ErrServer       = errors.New("upstream: internal error (5xx)")
	ErrRejected     = errors.New("upstream: request rejected (4xx)")
	ErrUnauthorized = errors.New("upstream: credentials refused")
	ErrBadResponse  = errors.New("upstream: invalid response format or malformed data")
	ErrCircuitOpen  = errors.New("upstream: circuit breaker is open")
	ErrInvalidURL   = errors.New("upstream: invalid target url")
)

// RequestError wraps a sentinel with the failing operation and response details.
type RequestError struct {
	Sentinel  error
	Operation string
	Status    int
	Body      string
	Err       error
}

func (e *RequestError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Operation, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the sentinel and the underlying transport error.
func (e *RequestError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Sentinel}
	}
	return []error{e.Sentinel, e.Err}
}

// kind is the short label used for metrics and span attributes.
func kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrRejected):
		return "rejected"
	case errors.Is(err, ErrServer):
		return "server_error"
	case errors.Is(err, ErrBadResponse):
		return "bad_response"
	case errors.Is(err, ErrInvalidURL):
		return "invalid_url"
	default:
		return "unavailable"
	}
}

// transportError classifies an error returned by http.Client.Do.
func transportError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return &RequestError{Sentinel: ErrTimeout, Operation: op, Err: err}
	}
	return &RequestError{Sentinel: ErrUnavailable, Operation: op, Err: err}
}

// statusError classifies a non-2xx response.
func statusError(op string, status int, body string) error {
	sentinel := ErrRejected
	switch {
	case status == 401 || status == 403:
		sentinel = ErrUnauthorized
	case status >= 500:
		sentinel = ErrServer
	}
	return &RequestError{Sentinel: sentinel, Operation: op, Status: status, Body: body}
}

// countsAsFailure reports whether err says anything about upstream health.
func countsAsFailure(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrServer)
}
