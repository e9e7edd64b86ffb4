// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"fmt"
	"time"

	"github.com/ManuGH/capflow/internal/capture/model"
)

// IllegalTransitionError is returned when an event is not allowed in the current phase.
// The record is left untouched so the session stays resumable.
type IllegalTransitionError struct {
	From   model.Phase
	Event  EventKind
	Reason string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition: %s + %s (%s)", e.From, e.Event, e.Reason)
}

func (e *IllegalTransitionError) Unwrap() error {
	return ErrIllegalTransition
}

// Dispatch resolves the transition for ev and applies it to rec.
// It is the only entry point that mutates rec.Phase.
func Dispatch(rec *model.SessionRecord, ev EventKind, now time.Time) (Transition, error) {
	d := DecisionFor(rec.Phase, ev)
	if !d.Allowed {
		return Transition{}, &IllegalTransitionError{From: rec.Phase, Event: ev, Reason: d.Reason}
	}
	tr, _ := TransitionFor(rec.Phase, ev)
	ApplyTransition(rec, tr, now)
	return tr, nil
}

// ApplyTransition mutates the session record according to the transition.
func ApplyTransition(rec *model.SessionRecord, tr Transition, now time.Time) {
	rec.Phase = tr.To
	switch tr.To {
	case model.PhaseDetecting:
		rec.ManualReason = model.ManualNone
	case model.PhaseCapturing, model.PhaseUploading:
		rec.Feedback = model.FeedbackNone
	case model.PhaseStopped, model.PhaseCompleted, model.PhasePermissionDenied:
		rec.Feedback = model.FeedbackNone
		rec.Countdown = 0
	}
	rec.UpdatedAt = now
}
