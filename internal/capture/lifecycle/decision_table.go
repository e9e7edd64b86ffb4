// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import "github.com/ManuGH/capflow/internal/capture/model"

const (
	ForbiddenTerminalAbsorbing = "terminal_absorbing"
	ForbiddenOutOfOrder        = "out_of_order"
	ForbiddenAlreadyInState    = "already_in_state"
	ForbiddenCaptureInFlight   = "capture_in_flight"
	ForbiddenUploadInFlight    = "upload_in_flight"
	ForbiddenRequiresLoad      = "requires_load"
	ForbiddenRequiresAppear    = "requires_appear"
	ForbiddenAlreadyVisible    = "already_visible"
)

// Decision records whether a transition is allowed and why it is forbidden.
type Decision struct {
	Allowed bool
	Reason  string
}

func allowed() Decision        { return Decision{Allowed: true} }
func forbid(r string) Decision { return Decision{Allowed: false, Reason: r} }

// forbiddenReasons names the rejections callers rely on for idempotence.
// Anything else that is not in the transition table is out of order.
var forbiddenReasons = map[model.Phase]map[EventKind]string{
	model.PhaseUninitialized: {
		EvCameraReadyAuto:   ForbiddenRequiresLoad,
		EvCameraReadyManual: ForbiddenRequiresLoad,
		EvCaptureTriggered:  ForbiddenRequiresLoad,
		EvAppeared:          ForbiddenRequiresLoad,
	},
	model.PhaseReady: {
		EvAppeared: ForbiddenAlreadyVisible,
	},
	model.PhaseDetecting: {
		EvAppeared:          ForbiddenAlreadyVisible,
		EvCameraReadyAuto:   ForbiddenAlreadyInState,
		EvCameraReadyManual: ForbiddenAlreadyInState,
	},
	model.PhaseManual: {
		EvAppeared:            ForbiddenAlreadyVisible,
		EvManualFallback:      ForbiddenAlreadyInState,
		EvManualModeRequested: ForbiddenAlreadyInState,
		EvCameraReadyAuto:     ForbiddenAlreadyInState,
		EvCameraReadyManual:   ForbiddenAlreadyInState,
	},
	model.PhaseCapturing: {
		EvAppeared:          ForbiddenAlreadyVisible,
		EvCaptureTriggered:  ForbiddenCaptureInFlight,
		EvManualFallback:    ForbiddenCaptureInFlight,
		EvCameraReadyAuto:   ForbiddenCaptureInFlight,
		EvCameraReadyManual: ForbiddenCaptureInFlight,
	},
	model.PhaseUploading: {
		EvAppeared:          ForbiddenAlreadyVisible,
		EvCaptureTriggered:  ForbiddenUploadInFlight,
		EvCaptureReceived:   ForbiddenUploadInFlight,
		EvManualFallback:    ForbiddenUploadInFlight,
		EvCameraReadyAuto:   ForbiddenUploadInFlight,
		EvCameraReadyManual: ForbiddenUploadInFlight,
	},
	model.PhaseSideTransition: {
		EvAppeared:         ForbiddenAlreadyVisible,
		EvCaptureTriggered: ForbiddenOutOfOrder,
	},
	model.PhaseStopped: {
		EvDisappeared:       ForbiddenAlreadyInState,
		EvCameraReadyAuto:   ForbiddenRequiresAppear,
		EvCameraReadyManual: ForbiddenRequiresAppear,
		EvCaptureTriggered:  ForbiddenRequiresAppear,
	},
}

// DecisionFor returns the explicit decision for phase×event.
func DecisionFor(from model.Phase, ev EventKind) Decision {
	if _, ok := TransitionFor(from, ev); ok {
		return allowed()
	}
	if from.IsTerminal() {
		return forbid(ForbiddenTerminalAbsorbing)
	}
	if r, ok := forbiddenReasons[from][ev]; ok {
		return forbid(r)
	}
	return forbid(ForbiddenOutOfOrder)
}

// ForbiddenTransitionReason documents why a transition is disallowed.
func ForbiddenTransitionReason(from model.Phase, ev EventKind) string {
	d := DecisionFor(from, ev)
	if d.Allowed {
		return ""
	}
	return d.Reason
}
