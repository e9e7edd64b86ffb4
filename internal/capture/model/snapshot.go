// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

import "time"

// SideSnapshot is the immutable per-side view of a session.
type SideSnapshot struct {
	Side        Side          `json:"side"`
	Status      CaptureStatus `json:"status"`
	Attempts    int           `json:"attempts"`
	RetriesLeft int           `json:"retriesLeft"`
}

// Snapshot is the immutable projection handed to the View.
// Seq increases with every emission of the same session.
type Snapshot struct {
	Seq          uint64         `json:"seq"`
	SessionID    string         `json:"sessionId"`
	Flow         Flow           `json:"flow"`
	Phase        Phase          `json:"phase"`
	Side         Side           `json:"side,omitempty"`
	Sides        []SideSnapshot `json:"sides,omitempty"`
	HelpVisible  bool           `json:"helpVisible"`
	Feedback     FeedbackCode   `json:"feedback,omitempty"`
	ManualReason ManualReason   `json:"manualReason,omitempty"`
	Error        ErrorKind      `json:"error,omitempty"`
	Countdown    int            `json:"countdown,omitempty"`
	Thumbnail    string         `json:"thumbnail,omitempty"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// FeedbackRoute is what the feedback surface needs after an evaluation rejection.
type FeedbackRoute struct {
	SessionID   string   `json:"sessionId"`
	Side        Side     `json:"side,omitempty"`
	Guidance    Guidance `json:"guidance"`
	Reason      string   `json:"reason,omitempty"`
	RetriesLeft int      `json:"retriesLeft"`
}
