// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package testkit

import (
	"sync"

	"github.com/ManuGH/capflow/internal/capture/model"
)

// View collects rendered snapshots.
type View struct {
	mu    sync.Mutex
	snaps []model.Snapshot
}

func (v *View) Render(s model.Snapshot) {
	v.mu.Lock()
	v.snaps = append(v.snaps, s)
	v.mu.Unlock()
}

// Snapshots returns every rendered snapshot in order.
func (v *View) Snapshots() []model.Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]model.Snapshot(nil), v.snaps...)
}

// Last returns the most recent snapshot.
func (v *View) Last() model.Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.snaps) == 0 {
		return model.Snapshot{}
	}
	return v.snaps[len(v.snaps)-1]
}

// PhaseCount counts rendered snapshots entering phase.
func (v *View) PhaseCount(phase model.Phase) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	prev := model.Phase("")
	for _, s := range v.snaps {
		if s.Phase == phase && prev != phase {
			n++
		}
		prev = s.Phase
	}
	return n
}

// Navigator records navigation requests.
type Navigator struct {
	Log *CallLog

	mu     sync.Mutex
	routes []model.FeedbackRoute
}

func NewNavigator(log *CallLog) *Navigator {
	return &Navigator{Log: log}
}

func (n *Navigator) ShowFeedback(route model.FeedbackRoute) {
	n.Log.add(CallShowFeedback)
	n.mu.Lock()
	n.routes = append(n.routes, route)
	n.mu.Unlock()
}

func (n *Navigator) ShowResult()   { n.Log.add(CallShowResult) }
func (n *Navigator) OpenSettings() { n.Log.add(CallOpenSettings) }

// Routes returns the feedback routes shown so far.
func (n *Navigator) Routes() []model.FeedbackRoute {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]model.FeedbackRoute(nil), n.routes...)
}

// Listener records outcome callbacks into the call log.
type Listener struct {
	Log *CallLog
}

func (l Listener) CaptureTaken(string, model.Side, int) { l.Log.add(CallCaptureTaken) }
func (l Listener) EvaluationCompleted(string, model.Side, model.EvaluationStatus) {
	l.Log.add(CallEvaluationResult)
}
func (l Listener) UploadCompleted(string, model.Side)               { l.Log.add(CallUploadCompleted) }
func (l Listener) UploadFailed(string, model.Side, model.ErrorKind) { l.Log.add(CallUploadFailed) }
