// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ports

import "github.com/ManuGH/capflow/internal/capture/model"

// View renders immutable session snapshots. Render must not call back into
// the orchestrator synchronously.
type View interface {
	Render(snap model.Snapshot)
}

// Navigator moves the user between surfaces outside the capture screen.
type Navigator interface {
	ShowFeedback(route model.FeedbackRoute)
	ShowResult()
	OpenSettings()
}

// Listener observes capture outcomes. Cancelled operations are never reported.
type Listener interface {
	CaptureTaken(sessionID string, side model.Side, size int)
	EvaluationCompleted(sessionID string, side model.Side, status model.EvaluationStatus)
	UploadCompleted(sessionID string, side model.Side)
	UploadFailed(sessionID string, side model.Side, kind model.ErrorKind)
}

// NopListener ignores every outcome.
type NopListener struct{}

func (NopListener) CaptureTaken(string, model.Side, int)                           {}
func (NopListener) EvaluationCompleted(string, model.Side, model.EvaluationStatus) {}
func (NopListener) UploadCompleted(string, model.Side)                             {}
func (NopListener) UploadFailed(string, model.Side, model.ErrorKind)               {}
