// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package testkit

import (
	"context"
	"sync"

	"github.com/ManuGH/capflow/internal/capture/model"
	"github.com/ManuGH/capflow/internal/capture/ports"
)

// EvalStep is one scripted evaluation outcome.
type EvalStep struct {
	Result ports.EvaluationResult
	Err    error
}

// Accept is an accepting evaluation step.
func Accept() EvalStep {
	return EvalStep{Result: ports.EvaluationResult{Status: model.EvaluationAccepted}}
}

// Reject is a rejecting evaluation step with reason.
func Reject(reason string) EvalStep {
	return EvalStep{Result: ports.EvaluationResult{Status: model.EvaluationRejected, Reason: reason}}
}

// Fail is a transport failure step.
func Fail(err error) EvalStep {
	return EvalStep{Err: err}
}

// Evaluator replays scripted steps; once exhausted it accepts.
type Evaluator struct {
	Log *CallLog

	mu       sync.Mutex
	steps    []EvalStep
	requests []ports.EvaluationRequest
}

func NewEvaluator(log *CallLog, steps ...EvalStep) *Evaluator {
	return &Evaluator{Log: log, steps: steps}
}

// Script appends steps.
func (e *Evaluator) Script(steps ...EvalStep) {
	e.mu.Lock()
	e.steps = append(e.steps, steps...)
	e.mu.Unlock()
}

// Requests returns the received requests.
func (e *Evaluator) Requests() []ports.EvaluationRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]ports.EvaluationRequest(nil), e.requests...)
}

func (e *Evaluator) Evaluate(ctx context.Context, req ports.EvaluationRequest) (ports.EvaluationResult, error) {
	e.Log.add(CallEvaluate)
	e.mu.Lock()
	e.requests = append(e.requests, req)
	step := Accept()
	if len(e.steps) > 0 {
		step = e.steps[0]
		e.steps = e.steps[1:]
	}
	e.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return ports.EvaluationResult{}, err
	}
	return step.Result, step.Err
}

// Uploader records uploads. With Hold set, Upload blocks until Release or
// cancellation.
type Uploader struct {
	Log *CallLog

	mu       sync.Mutex
	err      error
	hold     chan struct{}
	entered  chan struct{}
	requests []ports.UploadRequest
}

func NewUploader(log *CallLog) *Uploader {
	return &Uploader{Log: log}
}

// Fail makes uploads return err.
func (u *Uploader) Fail(err error) {
	u.mu.Lock()
	u.err = err
	u.mu.Unlock()
}

// Hold blocks subsequent uploads. The returned channel receives once per
// upload that started blocking.
func (u *Uploader) Hold() <-chan struct{} {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.hold = make(chan struct{})
	u.entered = make(chan struct{}, 16)
	return u.entered
}

// Release unblocks held uploads.
func (u *Uploader) Release() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.hold != nil {
		close(u.hold)
		u.hold = nil
	}
}

// Requests returns the received requests.
func (u *Uploader) Requests() []ports.UploadRequest {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]ports.UploadRequest(nil), u.requests...)
}

func (u *Uploader) Upload(ctx context.Context, req ports.UploadRequest) error {
	u.Log.add(CallUpload)
	u.mu.Lock()
	u.requests = append(u.requests, req)
	hold, entered, err := u.hold, u.entered, u.err
	u.mu.Unlock()

	if hold != nil {
		entered <- struct{}{}
		select {
		case <-hold:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
