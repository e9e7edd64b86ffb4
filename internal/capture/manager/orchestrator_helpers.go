// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package manager

import (
	"context"
	"errors"

	"github.com/ManuGH/capflow/internal/capture/lifecycle"
	"github.com/ManuGH/capflow/internal/capture/model"
	"github.com/ManuGH/capflow/internal/capture/policy"
	"github.com/ManuGH/capflow/internal/capture/ports"
	"github.com/ManuGH/capflow/internal/log"
)

// All methods suffixed Locked require o.mu.

func (o *Orchestrator) transitionLocked(ev lifecycle.EventKind) bool {
	tr, err := lifecycle.Dispatch(o.rec, ev, o.clock.Now())
	if err != nil {
		reason := "unknown"
		var ite *lifecycle.IllegalTransitionError
		if errors.As(err, &ite) {
			reason = ite.Reason
		}
		o.ignoredLocked(ev, reason)
		return false
	}
	o.dirty = true
	fsmTransitions.WithLabelValues(string(o.flow), string(tr.From), string(tr.To)).Inc()
	o.logger.Info().
		Str(log.FieldEvent, ev.String()).
		Str(log.FieldOldPhase, string(tr.From)).
		Str(log.FieldNewPhase, string(tr.To)).
		Str(log.FieldSide, string(o.rec.Side)).
		Msg("capture phase transition")
	return true
}

func (o *Orchestrator) ignoredLocked(ev lifecycle.EventKind, reason string) {
	eventsIgnoredTotal.WithLabelValues(ev.String(), reason).Inc()
	o.logger.Debug().
		Str(log.FieldEvent, ev.String()).
		Str(log.FieldReason, reason).
		Str("phase", string(o.rec.Phase)).
		Msg("event ignored")
}

// beginOpLocked supersedes any in-flight collaborator call and returns the
// context and token of the new one.
func (o *Orchestrator) beginOpLocked() (context.Context, uint64) {
	o.cancelOpLocked()
	o.opCtx, o.cancelOp = context.WithCancel(o.baseCtx)
	return o.opCtx, o.token
}

func (o *Orchestrator) cancelOpLocked() {
	if o.cancelOp != nil {
		o.cancelOp()
		o.cancelOp = nil
	}
	o.opCtx = nil
	o.token++
}

func (o *Orchestrator) resetWindowsLocked() {
	o.sufficient.Reset()
	o.fallback.Reset()
}

func (o *Orchestrator) setFeedbackLocked(f model.FeedbackCode) {
	if o.rec.Feedback != f {
		o.rec.Feedback = f
		o.dirty = true
	}
}

// Camera

func (o *Orchestrator) startCameraLocked() {
	o.cam = cameraStarting
	o.polls = 0
	gen := o.camGen
	ctx := o.baseCtx
	o.async(func() {
		err := o.camera.Start(ctx)
		o.apply(func() { o.onCameraStartedLocked(gen, err) })
	})
}

func (o *Orchestrator) onCameraStartedLocked(gen uint64, err error) {
	if gen != o.camGen || o.cam != cameraStarting {
		return
	}
	if err != nil {
		o.cam = cameraOff
		switch {
		case errors.Is(err, ports.ErrPermissionDenied):
			o.permissionDeniedLocked()
		case lifecycle.IsCancellation(err):
		default:
			o.logger.Warn().Err(err).Str(log.FieldErrorKind, string(model.ErrorCameraNotReady)).Msg("camera start failed")
			o.rec.Error = model.ErrorCameraNotReady
			o.dirty = true
		}
		return
	}
	o.cam = cameraStarted
	o.schedulePollLocked()
}

func (o *Orchestrator) schedulePollLocked() {
	gen := o.camGen
	stopTimer(&o.timers.poll)
	o.timers.poll = o.clock.AfterFunc(o.cfg.CameraPollInterval, func() { o.pollCamera(gen) })
}

// pollCamera runs on a timer; Connected is called without the session lock.
func (o *Orchestrator) pollCamera(gen uint64) {
	connected := o.camera.Connected()
	o.apply(func() {
		if gen != o.camGen || o.cam != cameraStarted {
			return
		}
		o.timers.poll = nil
		if connected {
			o.cameraConnectedLocked()
			return
		}
		o.polls++
		if o.polls >= o.cfg.CameraPollAttempts {
			o.logger.Warn().Int("polls", o.polls).Err(lifecycle.ErrRecoverable).Msg("camera not ready")
			o.rec.Error = model.ErrorCameraNotReady
			o.dirty = true
			return
		}
		o.schedulePollLocked()
	})
}

func (o *Orchestrator) cameraConnectedLocked() {
	o.cam = cameraLive
	o.polls = 0
	// The analyzer numbers frames per camera session.
	o.rec.LastFrameSeq = 0
	stopTimer(&o.timers.poll)
	if o.rec.Error == model.ErrorCameraNotReady {
		o.rec.Error = model.ErrorNone
		o.dirty = true
	}
	o.armLocked()
}

// stopCameraLocked queues the release of the camera, discarding an
// in-progress video take first.
func (o *Orchestrator) stopCameraLocked() {
	discard := o.recording || (o.cfg.RecordVideo && o.rec.Phase == model.PhaseCapturing)
	o.recording = false
	o.camGen++
	o.cam = cameraOff
	o.polls = 0
	stopTimer(&o.timers.poll)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(o.baseCtx), o.cfg.TeardownTimeout)
	o.async(func() {
		defer cancel()
		if discard {
			if _, err := o.trigger.StopRecording(ctx, true); err != nil {
				o.logger.Warn().Err(err).Msg("discard video take failed")
			}
		}
		if err := o.camera.Stop(ctx); err != nil {
			o.logger.Warn().Err(err).Msg("camera stop failed")
		}
	})
}

// Arming

// armLocked moves READY to DETECTING or MANUAL.
func (o *Orchestrator) armLocked() {
	if o.rec.Phase != model.PhaseReady || o.rec.HelpVisible {
		return
	}
	if !o.cfg.Autocapture || o.rec.ManualReason != model.ManualNone {
		reason := o.rec.ManualReason
		if !o.cfg.Autocapture {
			reason = model.ManualDisabled
		}
		if !o.transitionLocked(lifecycle.EvCameraReadyManual) {
			return
		}
		o.rec.ManualReason = reason
		o.resetWindowsLocked()
		return
	}
	if !o.transitionLocked(lifecycle.EvCameraReadyAuto) {
		return
	}
	o.sufficient.Reset()
	o.startFallbackLocked()
}

func (o *Orchestrator) startFallbackLocked() {
	o.fallback.Reset()
	o.fallback.Start()
	stopTimer(&o.timers.fallback)
	o.timers.fallback = o.clock.AfterFunc(o.cfg.ManualFallbackTimeout, func() {
		o.apply(func() { o.onFallbackTimerLocked() })
	})
}

// onFallbackTimerLocked covers a stalled detection feed.
func (o *Orchestrator) onFallbackTimerLocked() {
	o.timers.fallback = nil
	if o.rec.Phase != model.PhaseDetecting || o.rec.HelpVisible || o.rec.AutoCaptured {
		return
	}
	if !o.fallback.ElapsedAtLeast(o.cfg.ManualFallbackTimeout) {
		return
	}
	o.enterManualLocked(lifecycle.EvManualFallback, model.ManualTimeout)
}

func (o *Orchestrator) enterManualLocked(ev lifecycle.EventKind, reason model.ManualReason) {
	if !o.transitionLocked(ev) {
		return
	}
	o.rec.ManualReason = reason
	o.rec.Feedback = model.FeedbackNone
	o.resetWindowsLocked()
	stopTimer(&o.timers.fallback)
	manualFallbackTotal.WithLabelValues(string(o.flow), string(reason)).Inc()
}

// Detection

func (o *Orchestrator) onDetectionsLocked(b model.DetectionBatch) {
	if b.Seq <= o.rec.LastFrameSeq {
		detectionBatchesTotal.WithLabelValues(string(o.flow), "dropped_out_of_order").Inc()
		return
	}
	o.rec.LastFrameSeq = b.Seq
	if o.rec.Phase != model.PhaseDetecting {
		detectionBatchesTotal.WithLabelValues(string(o.flow), "dropped_phase").Inc()
		return
	}
	if o.rec.HelpVisible {
		detectionBatchesTotal.WithLabelValues(string(o.flow), "dropped_help").Inc()
		return
	}
	if b.Thumbnail != "" {
		o.rec.Thumbnail = b.Thumbnail
	}

	if !o.rec.AutoCaptured && o.fallback.ElapsedAtLeast(o.cfg.ManualFallbackTimeout) {
		o.enterManualLocked(lifecycle.EvManualFallback, model.ManualTimeout)
		return
	}

	cls := policy.ClassifyDetections(o.flow, o.rec.Side, b.Results)
	detectionBatchesTotal.WithLabelValues(string(o.flow), cls.Verdict.String()).Inc()
	o.frameLog.Do(func() {
		o.logger.Debug().
			Uint64(log.FieldFrameSeq, b.Seq).
			Str("verdict", cls.Verdict.String()).
			Int("candidates", cls.Candidates).
			Msg("detection batch")
	})

	if !cls.Qualifying() {
		o.sufficient.Reset()
		o.setFeedbackLocked(cls.Feedback)
		return
	}
	o.setFeedbackLocked(model.FeedbackNone)
	o.sufficient.Start()
	if o.sufficient.Elapsed() {
		o.triggerCaptureLocked(true)
	}
}

// Capture

func (o *Orchestrator) triggerCaptureLocked(auto bool) {
	if o.rec.HelpVisible {
		o.ignoredLocked(lifecycle.EvCaptureTriggered, "help_visible")
		return
	}
	if !o.transitionLocked(lifecycle.EvCaptureTriggered) {
		return
	}
	if auto {
		o.rec.AutoCaptured = true
	}
	o.rec.Error = model.ErrorNone
	o.resetWindowsLocked()
	stopTimer(&o.timers.fallback)

	st := o.rec.Current()
	st.Status = model.StatusLoading
	st.Attempts++

	source := "manual"
	if auto {
		source = "auto"
	}
	capturesTotal.WithLabelValues(string(o.flow), source).Inc()
	o.logger.Info().
		Str(log.FieldSide, string(o.rec.Side)).
		Int(log.FieldAttempt, st.Attempts).
		Str("trigger", source).
		Msg("capture triggered")

	ctx, tok := o.beginOpLocked()
	if o.cfg.RecordVideo {
		o.async(func() {
			err := o.trigger.StartRecording(ctx)
			o.apply(func() { o.onRecordingStartedLocked(tok, err) })
		})
		return
	}
	o.async(func() {
		data, err := o.trigger.CapturePhoto(ctx)
		o.apply(func() { o.onCaptureLocked(tok, data, err) })
	})
}

func (o *Orchestrator) onRecordingStartedLocked(tok uint64, err error) {
	if tok != o.token {
		return
	}
	if err != nil {
		o.failAttemptLocked(lifecycle.Classify(err, model.ErrorCaptureFailed))
		return
	}
	o.recording = true
	o.rec.Countdown = o.cfg.CountdownTicks
	o.dirty = true
	stopTimer(&o.timers.countdown)
	o.timers.countdown = o.clock.Every(o.cfg.CountdownInterval, func() {
		o.apply(func() { o.onCountdownTickLocked(tok) })
	})
}

func (o *Orchestrator) onCountdownTickLocked(tok uint64) {
	if tok != o.token || !o.recording {
		return
	}
	o.rec.Countdown--
	o.dirty = true
	if o.rec.Countdown > 0 {
		return
	}
	stopTimer(&o.timers.countdown)
	o.recording = false
	ctx := o.opCtx
	o.async(func() {
		data, err := o.trigger.StopRecording(ctx, false)
		o.apply(func() { o.onCaptureLocked(tok, data, err) })
	})
}

func (o *Orchestrator) onCaptureLocked(tok uint64, data []byte, err error) {
	if tok != o.token {
		return
	}
	if err != nil {
		o.failAttemptLocked(lifecycle.Classify(err, model.ErrorCaptureFailed))
		return
	}
	if len(data) == 0 {
		o.failAttemptLocked(lifecycle.NewReasonError(model.ErrorEmptyCapture, "capture returned no bytes", nil))
		return
	}
	if !o.transitionLocked(lifecycle.EvCaptureReceived) {
		return
	}
	o.rec.Countdown = 0
	side, size := o.rec.Side, len(data)
	o.later(func() { o.listener.CaptureTaken(o.id, side, size) })
	o.submitLocked(data)
}

// submitLocked routes captured bytes through evaluation or straight to upload.
func (o *Orchestrator) submitLocked(data []byte) {
	if o.cfg.UploadURL == "" {
		o.failAttemptLocked(lifecycle.NewReasonError(model.ErrorMissingUploadURL, "no upload url configured", nil))
		return
	}
	st := o.rec.Current()
	if o.cfg.Evaluate && o.retry.ShouldEvaluate(st.Counters) {
		if o.evaluator == nil {
			o.failAttemptLocked(lifecycle.NewReasonError(model.ErrorMissingEvaluator, "evaluation requested without evaluator", nil))
			return
		}
		st.Counters.TransportErrors = 0
		o.rec.PendingEval = &model.EvaluationContext{
			Side:     o.rec.Side,
			Photo:    data,
			Metadata: o.cfg.Metadata,
		}
		o.evaluateLocked()
		return
	}
	o.uploadLocked(data)
}

// Evaluation

func (o *Orchestrator) evaluateLocked() {
	pending := o.rec.PendingEval
	ctx, tok := o.beginOpLocked()
	pending.Token = tok
	side := pending.Side
	req := ports.EvaluationRequest{
		SessionID: o.id,
		Side:      side,
		Photo:     pending.Photo,
		Metadata:  pending.Metadata,
	}
	o.async(func() {
		res, err := o.evaluator.Evaluate(ctx, req)
		o.apply(func() { o.onEvaluationLocked(tok, side, res, err) })
	})
}

func (o *Orchestrator) onEvaluationLocked(tok uint64, side model.Side, res ports.EvaluationResult, err error) {
	pending := o.rec.PendingEval
	if tok != o.token || pending == nil || pending.Token != tok || pending.Side != side {
		evaluationsTotal.WithLabelValues(string(o.flow), "stale").Inc()
		o.logger.Debug().Str(log.FieldSide, string(side)).Msg("stale evaluation outcome dropped")
		return
	}
	st := o.rec.Current()
	if err != nil {
		if lifecycle.IsCancellation(err) {
			return
		}
		if o.retry.RecordTransportError(&st.Counters) {
			evaluationsTotal.WithLabelValues(string(o.flow), "transport_retry").Inc()
			o.logger.Warn().Err(err).
				Str(log.FieldSide, string(side)).
				Int(log.FieldAttempt, st.Counters.TransportErrors).
				Msg("evaluation transport error, resubmitting")
			o.evaluateLocked()
			return
		}
		evaluationsTotal.WithLabelValues(string(o.flow), "transport_error").Inc()
		o.failAttemptLocked(lifecycle.NewReasonError(model.ErrorEvaluation, "", err))
		return
	}

	o.rec.PendingEval = nil
	status := res.Status
	o.later(func() { o.listener.EvaluationCompleted(o.id, side, status) })
	if res.Accepted() {
		evaluationsTotal.WithLabelValues(string(o.flow), "accepted").Inc()
		o.uploadLocked(pending.Photo)
		return
	}

	evaluationsTotal.WithLabelValues(string(o.flow), "rejected").Inc()
	left := o.retry.RecordRejection(&st.Counters)
	st.Status = model.StatusIdle
	route := model.FeedbackRoute{
		SessionID:   o.id,
		Side:        side,
		Guidance:    policy.GuidanceFor(res.Reason, side),
		Reason:      res.Reason,
		RetriesLeft: left,
	}
	o.logger.Info().
		Err(lifecycle.ErrContentRejected).
		Str(log.FieldSide, string(side)).
		Str(log.FieldReason, res.Reason).
		Int(log.FieldRetriesLeft, left).
		Msg("capture rejected by evaluation")
	if !o.transitionLocked(lifecycle.EvEvaluationRejected) {
		return
	}
	o.later(func() { o.navigator.ShowFeedback(route) })
}

// Upload

func (o *Orchestrator) uploadLocked(data []byte) {
	ctx, tok := o.beginOpLocked()
	side := o.rec.Side
	contentType := ports.ContentTypeJPEG
	if o.cfg.RecordVideo {
		contentType = ports.ContentTypeMP4
	}
	req := ports.UploadRequest{
		SessionID:   o.id,
		URL:         o.cfg.UploadURL,
		Side:        side,
		Data:        data,
		ContentType: contentType,
	}
	o.async(func() {
		err := o.uploader.Upload(ctx, req)
		o.apply(func() { o.onUploadLocked(tok, side, err) })
	})
}

func (o *Orchestrator) onUploadLocked(tok uint64, side model.Side, err error) {
	if tok != o.token {
		return
	}
	if err != nil {
		if lifecycle.IsCancellation(err) {
			return
		}
		uploadsTotal.WithLabelValues(string(o.flow), "failed").Inc()
		o.later(func() { o.listener.UploadFailed(o.id, side, model.ErrorUpload) })
		o.failAttemptLocked(lifecycle.NewReasonError(model.ErrorUpload, "", err))
		return
	}

	uploadsTotal.WithLabelValues(string(o.flow), "completed").Inc()
	o.later(func() { o.listener.UploadCompleted(o.id, side) })
	st := o.rec.Current()
	st.Status = model.StatusSuccess
	o.retry.Reset(&st.Counters)

	if next, ok := o.nextSideLocked(); ok {
		if !o.transitionLocked(lifecycle.EvSideUploaded) {
			return
		}
		gen := o.token
		o.timers.delay = o.clock.AfterFunc(o.cfg.SideTransitionDelay, func() {
			o.apply(func() { o.onSideTransitionDoneLocked(gen, next) })
		})
		return
	}
	if !o.transitionLocked(lifecycle.EvFlowUploaded) {
		return
	}
	o.completeLocked()
}

// Sides and completion

func (o *Orchestrator) nextSideLocked() (model.Side, bool) {
	for i, s := range o.cfg.Sides {
		if s == o.rec.Side && i+1 < len(o.cfg.Sides) {
			return o.cfg.Sides[i+1], true
		}
	}
	return model.SideNone, false
}

// advanceSideLocked makes next the active side with unused state.
func (o *Orchestrator) advanceSideLocked(next model.Side) {
	o.rec.Side = next
	o.rec.ResetSide(next)
	o.rec.AutoCaptured = false
	o.rec.Thumbnail = ""
	o.rec.PendingEval = nil
	if o.cfg.Autocapture {
		o.rec.ManualReason = model.ManualNone
	}
	o.resetWindowsLocked()
	o.dirty = true
}

func (o *Orchestrator) onSideTransitionDoneLocked(tok uint64, next model.Side) {
	o.timers.delay = nil
	if tok != o.token || o.rec.Phase != model.PhaseSideTransition {
		return
	}
	o.advanceSideLocked(next)
	if !o.transitionLocked(lifecycle.EvSideTransitionDone) {
		return
	}
	if o.cam == cameraLive {
		o.cam = cameraStarted
	}
	o.polls = 0
	o.schedulePollLocked()
}

func (o *Orchestrator) completeLocked() {
	o.cancelOpLocked()
	o.timers.stopAll()
	o.stopCameraLocked()
	o.logger.Info().Msg("capture flow completed")
	o.timers.delay = o.clock.AfterFunc(o.cfg.CompletionDelay, func() {
		o.apply(func() { o.later(o.navigator.ShowResult) })
	})
}

// Failure and teardown

// failAttemptLocked surfaces a user-visible error for the current attempt
// and re-arms the camera. Cancellation stays silent.
func (o *Orchestrator) failAttemptLocked(err error) {
	if lifecycle.IsCancellation(err) {
		return
	}
	kind := lifecycle.KindOf(err)
	stopTimer(&o.timers.countdown)
	o.cancelOpLocked()
	o.recording = false
	o.rec.PendingEval = nil
	o.rec.Countdown = 0
	o.rec.Current().Status = model.StatusIdle
	o.rec.Error = kind
	o.dirty = true
	attemptFailuresTotal.WithLabelValues(string(o.flow), string(kind)).Inc()
	o.logger.Warn().Err(err).
		Str(log.FieldSide, string(o.rec.Side)).
		Str(log.FieldErrorKind, string(kind)).
		Msg("capture attempt failed")
	if !o.transitionLocked(lifecycle.EvAttemptFailed) {
		return
	}
	o.armLocked()
}

func (o *Orchestrator) teardownLocked() {
	if d := lifecycle.DecisionFor(o.rec.Phase, lifecycle.EvDisappeared); !d.Allowed {
		o.ignoredLocked(lifecycle.EvDisappeared, d.Reason)
		return
	}
	inTransition := o.rec.Phase == model.PhaseSideTransition
	o.cancelOpLocked()
	o.timers.stopAll()
	o.stopCameraLocked()
	o.resetWindowsLocked()

	if inTransition {
		if next, ok := o.nextSideLocked(); ok {
			o.advanceSideLocked(next)
		}
	}
	o.rec.PendingEval = nil
	o.rec.Countdown = 0
	for _, st := range o.rec.Sides {
		if st.Status == model.StatusLoading {
			st.Status = model.StatusIdle
		}
	}
	o.transitionLocked(lifecycle.EvDisappeared)
}

func (o *Orchestrator) permissionDeniedLocked() {
	if !o.transitionLocked(lifecycle.EvPermissionDenied) {
		return
	}
	o.cancelOpLocked()
	o.timers.stopAll()
	o.camGen++
	o.cam = cameraOff
	o.rec.Error = model.ErrorPermissionDenied
	o.logger.Warn().Err(lifecycle.ErrPermissionDenied).Msg("camera permission denied")
	o.later(o.navigator.OpenSettings)
}
