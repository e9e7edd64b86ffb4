// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import "github.com/ManuGH/capflow/internal/capture/model"

// Transition is a single allowed edge in the capture state machine.
type Transition struct {
	From  model.Phase
	To    model.Phase
	Event EventKind
}

var transitionsTable = []Transition{
	// First load
	{From: model.PhaseUninitialized, To: model.PhaseReady, Event: EvLoaded},

	// Arming
	{From: model.PhaseReady, To: model.PhaseDetecting, Event: EvCameraReadyAuto},
	{From: model.PhaseReady, To: model.PhaseManual, Event: EvCameraReadyManual},
	{From: model.PhaseDetecting, To: model.PhaseManual, Event: EvManualFallback},
	{From: model.PhaseDetecting, To: model.PhaseManual, Event: EvManualModeRequested},

	// Capture path
	{From: model.PhaseDetecting, To: model.PhaseCapturing, Event: EvCaptureTriggered},
	{From: model.PhaseManual, To: model.PhaseCapturing, Event: EvCaptureTriggered},
	{From: model.PhaseCapturing, To: model.PhaseUploading, Event: EvCaptureReceived},

	// Attempt outcomes
	{From: model.PhaseCapturing, To: model.PhaseReady, Event: EvAttemptFailed},
	{From: model.PhaseUploading, To: model.PhaseReady, Event: EvAttemptFailed},
	{From: model.PhaseUploading, To: model.PhaseReady, Event: EvEvaluationRejected},
	{From: model.PhaseUploading, To: model.PhaseSideTransition, Event: EvSideUploaded},
	{From: model.PhaseSideTransition, To: model.PhaseReady, Event: EvSideTransitionDone},
	{From: model.PhaseUploading, To: model.PhaseCompleted, Event: EvFlowUploaded},

	// Teardown and re-entry
	{From: model.PhaseUninitialized, To: model.PhaseStopped, Event: EvDisappeared},
	{From: model.PhaseReady, To: model.PhaseStopped, Event: EvDisappeared},
	{From: model.PhaseDetecting, To: model.PhaseStopped, Event: EvDisappeared},
	{From: model.PhaseManual, To: model.PhaseStopped, Event: EvDisappeared},
	{From: model.PhaseCapturing, To: model.PhaseStopped, Event: EvDisappeared},
	{From: model.PhaseUploading, To: model.PhaseStopped, Event: EvDisappeared},
	{From: model.PhaseSideTransition, To: model.PhaseStopped, Event: EvDisappeared},
	{From: model.PhaseStopped, To: model.PhaseReady, Event: EvAppeared},

	// Permission denial ends the flow
	{From: model.PhaseUninitialized, To: model.PhasePermissionDenied, Event: EvPermissionDenied},
	{From: model.PhaseReady, To: model.PhasePermissionDenied, Event: EvPermissionDenied},
	{From: model.PhaseStopped, To: model.PhasePermissionDenied, Event: EvPermissionDenied},
}

// TransitionFor returns the allowed transition for a given phase+event.
func TransitionFor(from model.Phase, ev EventKind) (Transition, bool) {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.Event == ev {
			return tr, true
		}
	}
	return Transition{}, false
}
