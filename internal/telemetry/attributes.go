// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by capture spans.
const (
	SessionIDKey   = "capture.session_id"
	FlowKey        = "capture.flow"
	SideKey        = "capture.side"
	ContentTypeKey = "capture.content_type"
	PayloadSizeKey = "capture.payload_bytes"

	EvaluationStatusKey = "evaluation.status"
	EvaluationReasonKey = "evaluation.reason"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// CaptureAttributes describes one capture payload. Empty values are omitted.
func CaptureAttributes(sessionID, side, contentType string, size int) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 4)
	if sessionID != "" {
		attrs = append(attrs, attribute.String(SessionIDKey, sessionID))
	}
	if side != "" {
		attrs = append(attrs, attribute.String(SideKey, side))
	}
	if contentType != "" {
		attrs = append(attrs, attribute.String(ContentTypeKey, contentType))
	}
	return append(attrs, attribute.Int(PayloadSizeKey, size))
}

// EvaluationAttributes describes a quality evaluation verdict.
func EvaluationAttributes(status, reason string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(EvaluationStatusKey, status)}
	if reason != "" {
		attrs = append(attrs, attribute.String(EvaluationReasonKey, reason))
	}
	return attrs
}

// ErrorAttributes marks a span as failed with a classified error type.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
