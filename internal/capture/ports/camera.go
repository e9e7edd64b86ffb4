// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ports

import "context"

// Camera controls the capture device session.
// Start may return ErrPermissionDenied when the user refused camera access.
type Camera interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	// Connected reports whether frames are flowing.
	Connected() bool
}

// CaptureTrigger performs the actual capture and yields raw bytes.
// Photo flows use CapturePhoto; video flows use the recording pair.
type CaptureTrigger interface {
	CapturePhoto(ctx context.Context) ([]byte, error)
	StartRecording(ctx context.Context) error
	// StopRecording ends the take; with discard set the bytes are thrown away.
	StopRecording(ctx context.Context, discard bool) ([]byte, error)
	// Pause and Resume freeze the preview without tearing the session down.
	Pause()
	Resume()
}
