package ports

import "github.com/ManuGH/capflow/internal/capture/model"

const (
	ContentTypeJPEG = "image/jpeg"
	ContentTypeMP4  = "video/mp4"
)

// EvaluationRequest is a pre-upload quality check of one capture.
type EvaluationRequest struct {
	SessionID string
	Side      model.Side
	Photo     []byte
	Metadata  model.EvaluationMetadata
}

// EvaluationResult is the server verdict. Reason is set on rejection.
type EvaluationResult struct {
	Status model.EvaluationStatus
	Reason string
}

// Accepted reports whether the capture may be uploaded.
func (r EvaluationResult) Accepted() bool {
	return r.Status == model.EvaluationAccepted
}

// UploadRequest is the final byte upload of one capture.
type UploadRequest struct {
	SessionID   string
	URL         string
	Side        model.Side
	Data        []byte
	ContentType string
}
