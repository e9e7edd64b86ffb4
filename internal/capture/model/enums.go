// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

// Flow is the validation type a session captures for.
type Flow string

const (
	FlowFace     Flow = "face"
	FlowDocument Flow = "document"
)

// Valid reports whether f is a known flow.
func (f Flow) Valid() bool {
	return f == FlowFace || f == FlowDocument
}

// Side is the logical unit of a multi-part capture.
// Face flows run with SideNone.
type Side string

const (
	SideNone  Side = ""
	SideFront Side = "front"
	SideBack  Side = "back"
)

// Phase is the orchestrator-visible lifecycle of a capture session.
type Phase string

const (
	PhaseUninitialized    Phase = "UNINITIALIZED"
	PhaseReady            Phase = "READY"
	PhaseDetecting        Phase = "DETECTING"
	PhaseManual           Phase = "MANUAL"
	PhaseCapturing        Phase = "CAPTURING"
	PhaseUploading        Phase = "UPLOADING"
	PhaseSideTransition   Phase = "SIDE_TRANSITION"
	PhaseCompleted        Phase = "COMPLETED"
	PhaseStopped          Phase = "STOPPED"
	PhasePermissionDenied Phase = "PERMISSION_DENIED"
)

// IsTerminal returns true if no further capture can happen in this phase.
func (p Phase) IsTerminal() bool {
	switch p {
	case PhaseCompleted, PhasePermissionDenied:
		return true
	}
	return false
}

// IsArmed returns true while the camera is live and waiting for a trigger.
func (p Phase) IsArmed() bool {
	return p == PhaseDetecting || p == PhaseManual
}

// IsBusy returns true while a capture or upload is in flight.
func (p Phase) IsBusy() bool {
	return p == PhaseCapturing || p == PhaseUploading
}

// CaptureStatus is the per-side progress shown to the user.
type CaptureStatus string

const (
	StatusIdle    CaptureStatus = "idle"
	StatusLoading CaptureStatus = "loading"
	StatusSuccess CaptureStatus = "success"
)

// FeedbackCode is the advisory hint rendered while detecting.
// Keep these stable: view copy and metrics depend on them.
type FeedbackCode string

const (
	FeedbackNone             FeedbackCode = ""
	FeedbackLocateFace       FeedbackCode = "LOCATE_FACE"
	FeedbackLocateDocument   FeedbackCode = "LOCATE_DOCUMENT"
	FeedbackRotateDocument   FeedbackCode = "ROTATE_DOCUMENT"
	FeedbackMultipleDetected FeedbackCode = "MULTIPLE_DETECTED"
)

// ManualReason records why the session fell back to manual capture.
type ManualReason string

const (
	ManualNone      ManualReason = ""
	ManualDisabled  ManualReason = "autocapture_disabled"
	ManualTimeout   ManualReason = "detection_timeout"
	ManualRequested ManualReason = "user_requested"
)

// ErrorKind is the View-facing classification of a failure.
// Raw collaborator errors never cross the orchestrator boundary.
type ErrorKind string

const (
	ErrorNone             ErrorKind = ""
	ErrorEmptyCapture     ErrorKind = "EMPTY_CAPTURE"
	ErrorCaptureFailed    ErrorKind = "CAPTURE_FAILED"
	ErrorMissingUploadURL ErrorKind = "MISSING_UPLOAD_URL"
	ErrorMissingEvaluator ErrorKind = "MISSING_EVALUATOR"
	ErrorEvaluation       ErrorKind = "EVALUATION_UNAVAILABLE"
	ErrorUpload           ErrorKind = "UPLOAD_FAILED"
	ErrorCameraNotReady   ErrorKind = "CAMERA_NOT_READY"
	ErrorPermissionDenied ErrorKind = "PERMISSION_DENIED"
)

// Guidance is the user-facing instruction shown after an evaluation rejection.
type Guidance string

const (
	GuidanceFaceNotFound          Guidance = "face_not_found"
	GuidanceBlurryImage           Guidance = "blurry_image"
	GuidanceLowLight              Guidance = "low_light"
	GuidanceReflection            Guidance = "reflection"
	GuidanceFrontDocumentNotFound Guidance = "front_document_not_found"
	GuidanceBackDocumentNotFound  Guidance = "back_document_not_found"
)

// EvaluationStatus is the server verdict for a quality evaluation.
type EvaluationStatus string

const (
	EvaluationAccepted EvaluationStatus = "ACCEPTED"
	EvaluationRejected EvaluationStatus = "REJECTED"
)
