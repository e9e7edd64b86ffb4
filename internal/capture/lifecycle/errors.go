// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"errors"

	"github.com/ManuGH/capflow/internal/capture/model"
)

var (
	// ErrRecoverable covers failures retried automatically within a bound.
	ErrRecoverable = errors.New("recoverable capture error")
	// ErrContentRejected is an evaluation verdict, routed to user guidance.
	ErrContentRejected = errors.New("capture content rejected")
	// ErrFatalAttempt ends the current attempt; the camera is re-armed.
	ErrFatalAttempt = errors.New("capture attempt failed")
	// ErrCancelled is silent and never surfaced to the view.
	ErrCancelled = errors.New("capture cancelled")
	// ErrPermissionDenied ends the flow with an open-settings affordance.
	ErrPermissionDenied = errors.New("camera permission denied")
	// ErrIllegalTransition classifies events that are not valid in the current phase.
	ErrIllegalTransition = errors.New("illegal transition")
)

// ErrorClass maps a view-facing error kind to its taxonomy class.
func ErrorClass(kind model.ErrorKind) error {
	switch kind {
	case model.ErrorNone:
		return nil
	case model.ErrorEvaluation, model.ErrorCameraNotReady:
		return ErrRecoverable
	case model.ErrorPermissionDenied:
		return ErrPermissionDenied
	default:
		return ErrFatalAttempt
	}
}
