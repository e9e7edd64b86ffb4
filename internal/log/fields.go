// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID = "session_id"
	FieldRequestID = "request_id"
	FieldTraceID   = "trace_id"
	FieldSpanID    = "span_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Capture fields
	FieldFlow        = "flow"
	FieldSide        = "side"
	FieldAttempt     = "attempt"
	FieldRetriesLeft = "retries_left"
	FieldReason      = "reason"
	FieldErrorKind   = "error_kind"
	FieldFrameSeq    = "frame_seq"

	// State fields
	FieldOldPhase = "old_phase"
	FieldNewPhase = "new_phase"
)
