// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package manager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/capflow/internal/capture/manager/testkit"
	"github.com/ManuGH/capflow/internal/capture/model"
)

func TestDisappeared_TeardownOrder(t *testing.T) {
	r := newRig(t, model.FlowFace)
	r.arm()
	r.stream(time.Second, frameStep, face())
	require.Equal(t, model.PhaseCapturing, r.phase())
	r.clk.Advance(time.Second)

	r.orch.Disappeared()

	calls := r.calls.Entries()
	require.GreaterOrEqual(t, len(calls), 2)
	require.Equal(t, []string{testkit.CallDiscardRecording, testkit.CallCameraStop}, calls[len(calls)-2:])

	snap := r.orch.Snapshot()
	require.Equal(t, model.PhaseStopped, snap.Phase)
	require.Zero(t, snap.Countdown)
	require.Equal(t, model.StatusIdle, snap.Sides[0].Status)
	require.False(t, r.orch.sufficient.Active())
	require.False(t, r.orch.fallback.Active())

	r.clk.Advance(10 * time.Second)
	require.Zero(t, r.calls.Count(testkit.CallStopRecording), "countdown is cancelled with the take")
	require.Zero(t, r.calls.Count(testkit.CallUpload))
}

func TestDisappeared_WhileDetectingSkipsDiscard(t *testing.T) {
	r := newRig(t, model.FlowDocument)
	r.arm()
	r.orch.Disappeared()
	require.Zero(t, r.calls.Count(testkit.CallDiscardRecording))
	require.Equal(t, 1, r.calls.Count(testkit.CallCameraStop))

	r.orch.Disappeared()
	require.Equal(t, 1, r.calls.Count(testkit.CallCameraStop), "teardown is idempotent")

	r.clk.Advance(time.Minute)
	require.Equal(t, model.PhaseStopped, r.phase(), "no timer survives teardown")
}

func TestAppeared_ReentryRearmsWithoutFirstLoad(t *testing.T) {
	r := newRig(t, model.FlowDocument)
	r.evaluator.Script(testkit.Reject(""))
	r.arm()
	r.orch.ManualCaptureRequested()
	require.Equal(t, 2, r.orch.Snapshot().Sides[0].RetriesLeft)

	r.orch.Disappeared()
	r.orch.Appeared()
	require.Equal(t, model.PhaseReady, r.phase())
	require.Equal(t, 2, r.calls.Count(testkit.CallCameraStart))
	require.True(t, r.orch.rec.FirstLoadDone)
	require.Equal(t, 2, r.orch.Snapshot().Sides[0].RetriesLeft, "re-entry keeps per-side counters")

	r.clk.Advance(r.cfg.CameraPollInterval)
	require.Equal(t, model.PhaseDetecting, r.phase())
	r.clk.Advance(r.cfg.ManualFallbackTimeout)
	require.Equal(t, model.PhaseManual, r.phase(), "timers are re-armed on re-entry")
}

func TestDisappeared_DuringSideTransitionResumesOnBack(t *testing.T) {
	r := newRig(t, model.FlowDocument)
	r.arm()
	r.orch.ManualCaptureRequested()
	require.Equal(t, model.PhaseSideTransition, r.phase())

	r.orch.Disappeared()
	r.clk.Advance(r.cfg.SideTransitionDelay)
	require.Equal(t, model.PhaseStopped, r.phase())

	r.orch.Appeared()
	r.clk.Advance(r.cfg.CameraPollInterval)
	snap := r.orch.Snapshot()
	require.Equal(t, model.PhaseDetecting, snap.Phase)
	require.Equal(t, model.SideBack, snap.Side)
}

func TestCancelRequested_IsSilent(t *testing.T) {
	r := newRig(t, model.FlowDocument)
	r.arm()
	r.orch.CancelRequested()

	snap := r.orch.Snapshot()
	require.Equal(t, model.PhaseStopped, snap.Phase)
	require.Equal(t, model.ErrorNone, snap.Error)
	require.Zero(t, r.calls.Count(testkit.CallShowFeedback))
}

// Cancelling an in-flight upload produces neither completion nor failure.
func TestDisappeared_CancelsInFlightUploadSilently(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	r := newRig(t, model.FlowDocument,
		withExecutor(nil),
		withConfig(func(c *FlowConfig) { c.Evaluate = false }),
	)
	entered := r.uploader.Hold()

	r.orch.Loaded()
	r.orch.Appeared()
	r.orch.CameraReady()
	require.Equal(t, model.PhaseDetecting, r.phase())

	r.orch.ManualCaptureRequested()
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("upload never started")
	}
	require.Equal(t, model.PhaseUploading, r.phase())

	r.orch.Disappeared()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.orch.Close(ctx))

	require.Zero(t, r.calls.Count(testkit.CallUploadCompleted))
	require.Zero(t, r.calls.Count(testkit.CallUploadFailed))
	snap := r.orch.Snapshot()
	require.Equal(t, model.PhaseStopped, snap.Phase)
	require.Equal(t, model.ErrorNone, snap.Error)
	require.Equal(t, 1, r.calls.Count(testkit.CallCameraStop))
}

// A late upload success for a cancelled attempt is dropped.
func TestStaleUploadOutcome_Dropped(t *testing.T) {
	q := &testkit.QueueExecutor{}
	r := newRig(t, model.FlowDocument, withExecutor(q), withConfig(func(c *FlowConfig) { c.Evaluate = false }))
	r.orch.Loaded()
	r.orch.Appeared()
	q.Drain()
	r.orch.CameraReady()

	r.orch.ManualCaptureRequested()
	require.True(t, q.Step())
	require.Equal(t, model.PhaseUploading, r.phase())

	r.orch.Disappeared()
	q.Drain()

	require.Equal(t, 1, r.calls.Count(testkit.CallUpload))
	require.Zero(t, r.calls.Count(testkit.CallUploadCompleted))
	require.Equal(t, model.PhaseStopped, r.phase())
	require.Equal(t, model.StatusIdle, r.orch.Snapshot().Sides[0].Status)
}

// An outcome for an abandoned evaluation context is dropped: no
// resubmission, no error surfaced.
func TestStaleEvaluationError_NoSideEffects(t *testing.T) {
	q := &testkit.QueueExecutor{}
	r := newRig(t, model.FlowDocument, withExecutor(q))
	r.evaluator.Script(testkit.Fail(errors.New("evaluation: timeout")))
	r.orch.Loaded()
	r.orch.Appeared()
	q.Drain()
	r.orch.CameraReady()

	r.orch.ManualCaptureRequested()
	require.True(t, q.Step())
	require.Equal(t, model.PhaseUploading, r.phase())

	r.orch.Disappeared()
	q.Drain()

	require.Equal(t, 1, r.calls.Count(testkit.CallEvaluate))
	snap := r.orch.Snapshot()
	require.Equal(t, model.PhaseStopped, snap.Phase)
	require.Equal(t, model.ErrorNone, snap.Error)
	require.Nil(t, r.orch.rec.PendingEval)
	require.Zero(t, r.orch.rec.Sides[model.SideFront].Counters.TransportErrors)
}

func TestCapturedPhotoAfterDisappear_Dropped(t *testing.T) {
	q := &testkit.QueueExecutor{}
	r := newRig(t, model.FlowDocument, withExecutor(q))
	r.orch.Loaded()
	r.orch.Appeared()
	q.Drain()
	r.orch.CameraReady()

	r.orch.ManualCaptureRequested()
	r.orch.Disappeared()
	q.Drain()

	require.Equal(t, 1, r.calls.Count(testkit.CallCapturePhoto))
	require.Zero(t, r.calls.Count(testkit.CallCaptureTaken))
	require.Zero(t, r.calls.Count(testkit.CallEvaluate))
	require.Equal(t, model.PhaseStopped, r.phase())
}

func TestClose_DropsLaterEvents(t *testing.T) {
	r := newRig(t, model.FlowDocument)
	r.arm()
	require.NoError(t, r.orch.Close(context.Background()))
	require.NoError(t, r.orch.Close(context.Background()))

	before := len(r.view.Snapshots())
	r.orch.ManualCaptureRequested()
	r.clk.Advance(time.Minute)
	require.Len(t, r.view.Snapshots(), before)
	require.Zero(t, r.calls.Count(testkit.CallCapturePhoto))
}

// The analyzer restarts frame numbering with the camera; re-entry must not
// drop the new frames as stale.
func TestReentry_AcceptsRestartedFrameNumbering(t *testing.T) {
	r := newRig(t, model.FlowDocument)
	r.arm()
	r.stream(500*time.Millisecond, frameStep)
	require.Equal(t, uint64(6), r.orch.rec.LastFrameSeq)

	r.orch.Disappeared()
	require.Equal(t, model.PhaseStopped, r.phase())
	r.orch.Appeared()
	r.clk.Advance(r.cfg.CameraPollInterval)
	require.Equal(t, model.PhaseDetecting, r.phase())

	r.seq = 0
	r.stream(1100*time.Millisecond, frameStep, front())
	require.Equal(t, 1, r.calls.Count(testkit.CallCapturePhoto))
	require.NotEqual(t, model.PhaseDetecting, r.phase())
}
