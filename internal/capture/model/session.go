// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

import "time"

// RetryCounters bound the attempts made for one logical unit (a side or a video take).
type RetryCounters struct {
	EvaluationFailures int `json:"evaluationFailures"`
	TransportErrors    int `json:"transportErrors"`
}

// SideState is the per-side part of a session.
type SideState struct {
	Status   CaptureStatus `json:"status"`
	Attempts int           `json:"attempts"`
	Counters RetryCounters `json:"counters"`
}

// EvaluationMetadata identifies what the evaluation server should expect.
type EvaluationMetadata struct {
	Country      string `json:"country,omitempty"`
	DocumentType string `json:"documentType,omitempty"`
}

// EvaluationContext is the most recent capture awaiting quality evaluation.
type EvaluationContext struct {
	Side     Side
	Photo    []byte
	Metadata EvaluationMetadata
	Token    uint64
}

// SessionRecord is the orchestrator-owned source of truth for one capture flow.
type SessionRecord struct {
	SessionID     string
	Flow          Flow
	Phase         Phase
	Side          Side
	Sides         map[Side]*SideState
	HelpVisible   bool
	AutoCaptured  bool
	FirstLoadDone bool
	Feedback      FeedbackCode
	ManualReason  ManualReason
	Error         ErrorKind
	Countdown     int
	Thumbnail     string
	LastFrameSeq  uint64
	PendingEval   *EvaluationContext
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewSessionRecord returns an UNINITIALIZED record with per-side state for the flow.
func NewSessionRecord(id string, flow Flow, sides []Side, now time.Time) *SessionRecord {
	rec := &SessionRecord{
		SessionID: id,
		Flow:      flow,
		Phase:     PhaseUninitialized,
		Sides:     make(map[Side]*SideState, len(sides)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, s := range sides {
		rec.Sides[s] = &SideState{Status: StatusIdle}
	}
	if len(sides) > 0 {
		rec.Side = sides[0]
	}
	return rec
}

// Current returns the state for the active side, creating it if missing.
func (r *SessionRecord) Current() *SideState {
	st, ok := r.Sides[r.Side]
	if !ok {
		st = &SideState{Status: StatusIdle}
		r.Sides[r.Side] = st
	}
	return st
}

// ResetSide restores a side to its initial (unused) values.
func (r *SessionRecord) ResetSide(s Side) {
	r.Sides[s] = &SideState{Status: StatusIdle}
}
