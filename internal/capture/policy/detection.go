// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package policy

import "github.com/ManuGH/capflow/internal/capture/model"

// Verdict classifies one detection batch against the expected subject.
type Verdict int

const (
	VerdictNone Verdict = iota
	VerdictMultiple
	VerdictWrongSide
	VerdictQualifying
)

func (v Verdict) String() string {
	switch v {
	case VerdictMultiple:
		return "multiple"
	case VerdictWrongSide:
		return "wrong_side"
	case VerdictQualifying:
		return "qualifying"
	default:
		return "none"
	}
}

// Classification is the outcome of ClassifyDetections.
type Classification struct {
	Verdict    Verdict
	Feedback   model.FeedbackCode
	Candidates int
}

// Qualifying reports whether the batch extends the sufficient-detection streak.
func (c Classification) Qualifying() bool {
	return c.Verdict == VerdictQualifying
}

// ClassifyDetections decides what a batch means for the flow and expected side.
// Candidates are detections of the flow's category with a non-zero score; for
// documents the single candidate must resolve unambiguously to the expected side.
func ClassifyDetections(flow model.Flow, expected model.Side, results []model.Detection) Classification {
	var candidate model.Detection
	n := 0
	for _, d := range results {
		if isCandidate(flow, d) {
			candidate = d
			n++
		}
	}

	switch {
	case n > 1:
		return Classification{Verdict: VerdictMultiple, Feedback: model.FeedbackMultipleDetected, Candidates: n}
	case n == 0:
		return Classification{Verdict: VerdictNone, Feedback: locateFeedback(flow)}
	}

	if flow == model.FlowDocument {
		side := candidate.DocumentSide()
		if side == model.SideNone || (expected != model.SideNone && side != expected) {
			return Classification{Verdict: VerdictWrongSide, Feedback: model.FeedbackRotateDocument, Candidates: 1}
		}
	}
	return Classification{Verdict: VerdictQualifying, Feedback: model.FeedbackNone, Candidates: 1}
}

func isCandidate(flow model.Flow, d model.Detection) bool {
	switch flow {
	case model.FlowFace:
		return d.Category == model.CategoryFace && d.HasLandmarks && d.Confidence > 0
	case model.FlowDocument:
		return d.Category == model.CategoryDocument && (d.FrontScore > 0 || d.BackScore > 0)
	default:
		return false
	}
}

func locateFeedback(flow model.Flow) model.FeedbackCode {
	if flow == model.FlowDocument {
		return model.FeedbackLocateDocument
	}
	return model.FeedbackLocateFace
}
