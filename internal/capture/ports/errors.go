// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ports

import "errors"

var (
	// ErrPermissionDenied is returned by Camera.Start when access was refused.
	ErrPermissionDenied = errors.New("camera permission denied")
	// ErrNotConnected is returned by collaborators that have no live device.
	ErrNotConnected = errors.New("camera not connected")
)
