// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package manager drives one capture session: it owns the session record,
// both timing windows and the retry counters, and talks to collaborators only
// through the ports interfaces.
//
// Every public operation takes the session lock, mutates state, queues its
// side effects and returns. Snapshots and collaborator calls run after the
// lock is released; blocking calls run on the Executor and resume through a
// continuation that carries the attempt token current at dispatch. A
// continuation whose token is stale was cancelled or superseded and is
// dropped without callbacks.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ManuGH/capflow/internal/capture/clock"
	"github.com/ManuGH/capflow/internal/capture/lifecycle"
	"github.com/ManuGH/capflow/internal/capture/model"
	"github.com/ManuGH/capflow/internal/capture/policy"
	"github.com/ManuGH/capflow/internal/capture/ports"
	"github.com/ManuGH/capflow/internal/capture/timing"
	"github.com/ManuGH/capflow/internal/log"
)

// Options wires an Orchestrator. Evaluator and Listener are optional.
type Options struct {
	SessionID string
	Flow      model.Flow
	Config    FlowConfig

	Camera    ports.Camera
	Trigger   ports.CaptureTrigger
	Evaluator ports.Evaluator
	Uploader  ports.Uploader
	View      ports.View
	Navigator ports.Navigator
	Listener  ports.Listener

	// Clock defaults to the wall clock.
	Clock clock.Clock
	// Executor defaults to an owned goroutine registry drained by Close.
	Executor Executor
}

type cameraState int

const (
	cameraOff cameraState = iota
	cameraStarting
	cameraStarted
	cameraLive
)

type phaseTimers struct {
	fallback  clock.Timer
	countdown clock.Timer
	delay     clock.Timer
	poll      clock.Timer
}

func stopTimer(t *clock.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

func (t *phaseTimers) stopAll() {
	stopTimer(&t.fallback)
	stopTimer(&t.countdown)
	stopTimer(&t.delay)
	stopTimer(&t.poll)
}

// Orchestrator is the per-session capture state machine.
type Orchestrator struct {
	id    string
	flow  model.Flow
	cfg   FlowConfig
	retry policy.Retry

	camera    ports.Camera
	trigger   ports.CaptureTrigger
	evaluator ports.Evaluator
	uploader  ports.Uploader
	view      ports.View
	navigator ports.Navigator
	listener  ports.Listener

	clock    clock.Clock
	exec     Executor
	registry *sessionRegistry
	logger   zerolog.Logger
	frameLog rate.Sometimes

	baseCtx context.Context
	stop    context.CancelFunc

	mu         sync.Mutex
	rec        *model.SessionRecord
	sufficient *timing.Window
	fallback   *timing.Window
	timers     phaseTimers
	token      uint64
	opCtx      context.Context
	cancelOp   context.CancelFunc
	recording  bool
	cam        cameraState
	camGen     uint64
	polls      int
	seq        uint64
	dirty      bool
	pending    []func()
	closed     bool

	emitMu  sync.Mutex
	emitted uint64
}

// New validates opts and returns an UNINITIALIZED session.
func New(opts Options) (*Orchestrator, error) {
	if opts.SessionID == "" {
		return nil, errors.New("session id must be set")
	}
	if !opts.Flow.Valid() {
		return nil, fmt.Errorf("unknown flow %q", opts.Flow)
	}
	if opts.Camera == nil {
		return nil, errors.New("camera must be set")
	}
	if opts.Trigger == nil {
		return nil, errors.New("capture trigger must be set")
	}
	if opts.Uploader == nil {
		return nil, errors.New("uploader must be set")
	}
	if opts.View == nil {
		return nil, errors.New("view must be set")
	}
	if opts.Navigator == nil {
		return nil, errors.New("navigator must be set")
	}
	cfg := opts.Config.withDefaults(opts.Flow)
	if err := cfg.Validate(opts.Flow); err != nil {
		return nil, fmt.Errorf("invalid flow config: %w", err)
	}

	o := &Orchestrator{
		id:        opts.SessionID,
		flow:      opts.Flow,
		cfg:       cfg,
		retry:     cfg.Retry,
		camera:    opts.Camera,
		trigger:   opts.Trigger,
		evaluator: opts.Evaluator,
		uploader:  opts.Uploader,
		view:      opts.View,
		navigator: opts.Navigator,
		listener:  opts.Listener,
		clock:     opts.Clock,
		exec:      opts.Executor,
		frameLog:  rate.Sometimes{Interval: time.Second},
	}
	if o.listener == nil {
		o.listener = ports.NopListener{}
	}
	if o.clock == nil {
		o.clock = clock.Real{}
	}
	if o.exec == nil {
		o.registry = &sessionRegistry{}
		o.exec = o.registry
	}
	o.logger = log.WithComponent("capture").With().
		Str(log.FieldSessionID, o.id).
		Str(log.FieldFlow, string(o.flow)).
		Logger()
	o.baseCtx, o.stop = context.WithCancel(log.ContextWithSessionID(context.Background(), o.id))

	o.rec = model.NewSessionRecord(o.id, o.flow, cfg.Sides, o.clock.Now())
	o.sufficient = timing.NewWindow(o.clock, cfg.SufficientDuration)
	o.fallback = timing.NewWindow(o.clock, cfg.ManualFallbackTimeout)
	return o, nil
}

// ID returns the session id.
func (o *Orchestrator) ID() string { return o.id }

// Flow returns the validation type of the session.
func (o *Orchestrator) Flow() model.Flow { return o.flow }

// Snapshot returns the current state without advancing the emission sequence.
func (o *Orchestrator) Snapshot() model.Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked(false)
}

// Loaded performs first-load setup: the capture screen was entered.
func (o *Orchestrator) Loaded() {
	o.apply(func() {
		if !o.transitionLocked(lifecycle.EvLoaded) {
			return
		}
		o.rec.FirstLoadDone = true
		for _, s := range o.cfg.Sides {
			o.rec.ResetSide(s)
		}
		o.rec.Side = o.cfg.Sides[0]
	})
}

// Appeared starts the camera. From STOPPED it re-enters READY without
// repeating first-load setup.
func (o *Orchestrator) Appeared() {
	o.apply(func() {
		switch o.rec.Phase {
		case model.PhaseStopped:
			if !o.transitionLocked(lifecycle.EvAppeared) {
				return
			}
			o.rec.LastFrameSeq = 0
		case model.PhaseReady:
		default:
			o.ignoredLocked(lifecycle.EvAppeared, lifecycle.ForbiddenTransitionReason(o.rec.Phase, lifecycle.EvAppeared))
			return
		}
		if o.cam == cameraOff {
			o.startCameraLocked()
		}
	})
}

// Disappeared tears the session down to STOPPED: discard any video take,
// release the camera, clear the timing windows.
func (o *Orchestrator) Disappeared() {
	o.apply(func() { o.teardownLocked() })
}

// CancelRequested is the user's explicit cancel; it ends the flow silently.
func (o *Orchestrator) CancelRequested() {
	o.apply(func() {
		o.logger.Info().Str(log.FieldEvent, "cancel_requested").Msg("capture cancelled by user")
		o.teardownLocked()
	})
}

// CameraReady reports that the camera delivers frames.
func (o *Orchestrator) CameraReady() {
	o.apply(func() {
		if o.rec.Phase != model.PhaseReady {
			o.ignoredLocked(lifecycle.EvCameraReadyAuto, lifecycle.ForbiddenTransitionReason(o.rec.Phase, lifecycle.EvCameraReadyAuto))
			return
		}
		o.cameraConnectedLocked()
	})
}

// CameraPermissionDenied ends the flow with the open-settings affordance.
func (o *Orchestrator) CameraPermissionDenied() {
	o.apply(func() { o.permissionDeniedLocked() })
}

// HandleDetections consumes one detection batch from the frame analyzer.
func (o *Orchestrator) HandleDetections(batch model.DetectionBatch) {
	o.apply(func() { o.onDetectionsLocked(batch) })
}

// HelpRequested shows the help overlay, pausing the preview and detection.
func (o *Orchestrator) HelpRequested() {
	o.apply(func() {
		if o.rec.HelpVisible || o.rec.Phase.IsTerminal() || o.rec.Phase.IsBusy() {
			return
		}
		o.rec.HelpVisible = true
		o.dirty = true
		o.resetWindowsLocked()
		stopTimer(&o.timers.fallback)
		o.later(o.trigger.Pause)
	})
}

// HelpDismissed hides the help overlay and re-arms detection.
func (o *Orchestrator) HelpDismissed() {
	o.apply(func() {
		if !o.rec.HelpVisible {
			return
		}
		o.rec.HelpVisible = false
		o.dirty = true
		o.later(o.trigger.Resume)
		switch o.rec.Phase {
		case model.PhaseDetecting:
			o.startFallbackLocked()
		case model.PhaseReady:
			if o.cam == cameraLive {
				o.armLocked()
			}
		}
	})
}

// ManualCaptureRequested triggers a capture from DETECTING or MANUAL.
// It is a no-op while a capture or upload is in flight.
func (o *Orchestrator) ManualCaptureRequested() {
	o.apply(func() { o.triggerCaptureLocked(false) })
}

// ManualModeRequested switches from detection to the manual trigger.
func (o *Orchestrator) ManualModeRequested() {
	o.apply(func() {
		if o.rec.HelpVisible {
			return
		}
		o.enterManualLocked(lifecycle.EvManualModeRequested, model.ManualRequested)
	})
}

// RetryRequested re-arms the camera from READY, typically after the user
// returned from the evaluation feedback surface or a recoverable error.
func (o *Orchestrator) RetryRequested() {
	o.apply(func() {
		if o.rec.Phase != model.PhaseReady {
			o.ignoredLocked(lifecycle.EvCameraReadyAuto, "not_ready")
			return
		}
		if o.rec.Error != model.ErrorNone {
			o.rec.Error = model.ErrorNone
			o.dirty = true
		}
		if o.cfg.Autocapture {
			o.rec.ManualReason = model.ManualNone
		}
		switch o.cam {
		case cameraLive:
			o.armLocked()
		case cameraStarted:
			o.polls = 0
			o.schedulePollLocked()
		case cameraOff:
			o.startCameraLocked()
		}
	})
}

// Close stops timers, cancels in-flight work and waits for owned goroutines.
// It does not release the camera; call Disappeared first.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.cancelOpLocked()
	o.timers.stopAll()
	o.mu.Unlock()

	o.stop()
	if o.registry != nil {
		return o.registry.CloseAndWait(ctx)
	}
	return nil
}

// apply runs fn under the session lock, then renders the resulting snapshot
// and runs the queued effects with no lock held.
func (o *Orchestrator) apply(fn func()) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	fn()
	var snap model.Snapshot
	emit := o.dirty
	if emit {
		snap = o.snapshotLocked(true)
		o.dirty = false
	}
	effects := o.pending
	o.pending = nil
	o.mu.Unlock()

	if emit {
		o.emit(snap)
	}
	for _, fx := range effects {
		fx()
	}
}

// later queues fx to run after the session lock is released.
func (o *Orchestrator) later(fx func()) {
	o.pending = append(o.pending, fx)
}

// async queues a blocking call for the executor.
func (o *Orchestrator) async(fn func()) {
	o.later(func() {
		if !o.exec.Go(fn) {
			o.logger.Warn().Msg("capture executor closed, dropping collaborator call")
		}
	})
}
