// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ports

import "context"

// Evaluator runs the server-side quality check. Any returned error other than
// a cancellation is treated as a transport failure; content rejections are
// reported through EvaluationResult.
type Evaluator interface {
	Evaluate(ctx context.Context, req EvaluationRequest) (EvaluationResult, error)
}

// Uploader delivers capture bytes to their final destination.
type Uploader interface {
	Upload(ctx context.Context, req UploadRequest) error
}
