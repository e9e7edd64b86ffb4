// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"context"
	"errors"
	"strings"

	"github.com/ManuGH/capflow/internal/capture/model"
)

type reasonError struct {
	kind   model.ErrorKind
	detail string
	err    error
}

func (e *reasonError) Error() string {
	if e.err != nil {
		return string(e.kind) + ": " + e.err.Error()
	}
	if e.detail != "" {
		return string(e.kind) + ": " + e.detail
	}
	return string(e.kind)
}

func (e *reasonError) Is(target error) bool {
	if target == nil {
		return false
	}
	class := ErrorClass(e.kind)
	return class != nil && target == class
}

func (e *reasonError) Unwrap() error {
	return e.err
}

// NewReasonError wraps err with a view-facing error kind.
func NewReasonError(kind model.ErrorKind, detail string, err error) error {
	return &reasonError{kind: kind, detail: sanitizeDetail(detail), err: err}
}

// KindOf extracts the view-facing kind from err, or ErrorNone.
func KindOf(err error) model.ErrorKind {
	var rerr *reasonError
	if errors.As(err, &rerr) {
		return rerr.kind
	}
	return model.ErrorNone
}

// Classify translates a collaborator error into the taxonomy. Cancellation
// wins over everything; errors already carrying a kind keep it; anything
// else becomes fallback.
func Classify(err error, fallback model.ErrorKind) error {
	if err == nil {
		return nil
	}
	if IsCancellation(err) {
		return ErrCancelled
	}
	var rerr *reasonError
	if errors.As(err, &rerr) {
		return err
	}
	return NewReasonError(fallback, "", err)
}

// IsCancellation reports whether err is a silent cancellation outcome.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, ErrCancelled)
}

func sanitizeDetail(detail string) string {
	if detail == "" {
		return ""
	}
	const maxLen = 160
	clean := strings.ReplaceAll(detail, "\n", " ")
	if len(clean) > maxLen {
		return clean[:maxLen] + "..."
	}
	return clean
}
