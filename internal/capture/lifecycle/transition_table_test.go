// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"testing"
	"time"

	"github.com/ManuGH/capflow/internal/capture/model"
	"github.com/stretchr/testify/require"
)

var allPhases = []model.Phase{
	model.PhaseUninitialized,
	model.PhaseReady,
	model.PhaseDetecting,
	model.PhaseManual,
	model.PhaseCapturing,
	model.PhaseUploading,
	model.PhaseSideTransition,
	model.PhaseCompleted,
	model.PhaseStopped,
	model.PhasePermissionDenied,
}

func TestTransitionTable_Coverage(t *testing.T) {
	allowedSet := map[model.Phase]map[EventKind]struct{}{}
	for _, tr := range transitionsTable {
		if _, ok := allowedSet[tr.From]; !ok {
			allowedSet[tr.From] = map[EventKind]struct{}{}
		}
		if _, exists := allowedSet[tr.From][tr.Event]; exists {
			t.Fatalf("duplicate transition: %s + %v", tr.From, tr.Event)
		}
		allowedSet[tr.From][tr.Event] = struct{}{}
	}

	for _, phase := range allPhases {
		for _, ev := range AllEvents() {
			decision := DecisionFor(phase, ev)
			if _, ok := allowedSet[phase][ev]; ok {
				require.True(t, decision.Allowed, "allowed transition must be marked allowed for %s + %v", phase, ev)
				continue
			}
			require.False(t, decision.Allowed, "forbidden transition must be marked forbidden for %s + %v", phase, ev)
			require.NotEmpty(t, decision.Reason, "forbidden transition must have reason for %s + %v", phase, ev)
		}
	}
}

func TestTransitionTable_TerminalPhasesAbsorb(t *testing.T) {
	for _, phase := range []model.Phase{model.PhaseCompleted, model.PhasePermissionDenied} {
		for _, ev := range AllEvents() {
			require.Equal(t, ForbiddenTerminalAbsorbing, ForbiddenTransitionReason(phase, ev), "%s + %v", phase, ev)
		}
	}
}

func TestTransitionTable_NamedRejections(t *testing.T) {
	cases := []struct {
		from   model.Phase
		ev     EventKind
		reason string
	}{
		{model.PhaseCapturing, EvCaptureTriggered, ForbiddenCaptureInFlight},
		{model.PhaseUploading, EvCaptureTriggered, ForbiddenUploadInFlight},
		{model.PhaseStopped, EvDisappeared, ForbiddenAlreadyInState},
		{model.PhaseStopped, EvCaptureTriggered, ForbiddenRequiresAppear},
		{model.PhaseUninitialized, EvCameraReadyAuto, ForbiddenRequiresLoad},
		{model.PhaseDetecting, EvAppeared, ForbiddenAlreadyVisible},
		{model.PhaseManual, EvManualFallback, ForbiddenAlreadyInState},
		{model.PhaseReady, EvCaptureReceived, ForbiddenOutOfOrder},
	}
	for _, tc := range cases {
		require.Equal(t, tc.reason, ForbiddenTransitionReason(tc.from, tc.ev), "%s + %v", tc.from, tc.ev)
	}
}

func TestDispatch_AppliesAllowedTransition(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := model.NewSessionRecord("s1", model.FlowFace, []model.Side{model.SideNone}, start)
	rec.Feedback = model.FeedbackLocateFace

	later := start.Add(time.Second)
	_, err := Dispatch(rec, EvLoaded, later)
	require.NoError(t, err)
	_, err = Dispatch(rec, EvCameraReadyAuto, later)
	require.NoError(t, err)
	tr, err := Dispatch(rec, EvCaptureTriggered, later)
	require.NoError(t, err)

	require.Equal(t, model.PhaseDetecting, tr.From)
	require.Equal(t, model.PhaseCapturing, rec.Phase)
	require.Equal(t, model.FeedbackNone, rec.Feedback)
	require.Equal(t, later, rec.UpdatedAt)
}

func TestDispatch_IllegalLeavesRecordUntouched(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := model.NewSessionRecord("s1", model.FlowDocument, []model.Side{model.SideFront, model.SideBack}, start)
	rec.Phase = model.PhaseCapturing
	rec.Feedback = model.FeedbackRotateDocument

	_, err := Dispatch(rec, EvCaptureTriggered, start.Add(time.Minute))
	require.ErrorIs(t, err, ErrIllegalTransition)

	var ite *IllegalTransitionError
	require.ErrorAs(t, err, &ite)
	require.Equal(t, ForbiddenCaptureInFlight, ite.Reason)
	require.Equal(t, model.PhaseCapturing, rec.Phase)
	require.Equal(t, model.FeedbackRotateDocument, rec.Feedback)
	require.Equal(t, start, rec.UpdatedAt)
}

func TestDispatch_DetectingClearsManualReason(t *testing.T) {
	rec := model.NewSessionRecord("s1", model.FlowFace, nil, time.Time{})
	rec.Phase = model.PhaseReady
	rec.ManualReason = model.ManualTimeout

	_, err := Dispatch(rec, EvCameraReadyAuto, time.Time{})
	require.NoError(t, err)
	require.Equal(t, model.ManualNone, rec.ManualReason)
}
