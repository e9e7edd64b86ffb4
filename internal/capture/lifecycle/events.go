// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

// EventKind is a domain event in the capture lifecycle.
type EventKind int

const (
	EvUnknown EventKind = iota
	EvLoaded
	EvCameraReadyAuto
	EvCameraReadyManual
	EvManualFallback
	EvManualModeRequested
	EvCaptureTriggered
	EvCaptureReceived
	EvAttemptFailed
	EvEvaluationRejected
	EvSideUploaded
	EvSideTransitionDone
	EvFlowUploaded
	EvDisappeared
	EvAppeared
	EvPermissionDenied
)

var eventNames = map[EventKind]string{
	EvUnknown:             "unknown",
	EvLoaded:              "loaded",
	EvCameraReadyAuto:     "camera_ready_auto",
	EvCameraReadyManual:   "camera_ready_manual",
	EvManualFallback:      "manual_fallback",
	EvManualModeRequested: "manual_mode_requested",
	EvCaptureTriggered:    "capture_triggered",
	EvCaptureReceived:     "capture_received",
	EvAttemptFailed:       "attempt_failed",
	EvEvaluationRejected:  "evaluation_rejected",
	EvSideUploaded:        "side_uploaded",
	EvSideTransitionDone:  "side_transition_done",
	EvFlowUploaded:        "flow_uploaded",
	EvDisappeared:         "disappeared",
	EvAppeared:            "appeared",
	EvPermissionDenied:    "permission_denied",
}

func (e EventKind) String() string {
	if s, ok := eventNames[e]; ok {
		return s
	}
	return "unknown"
}

// AllEvents lists every dispatchable event, in declaration order.
func AllEvents() []EventKind {
	out := make([]EventKind, 0, len(eventNames)-1)
	for ev := EvLoaded; ev <= EvPermissionDenied; ev++ {
		out = append(out, ev)
	}
	return out
}
