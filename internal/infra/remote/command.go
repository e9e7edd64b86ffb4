// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package remote

import (
	"errors"
	"time"

	"github.com/ManuGH/capflow/internal/capture/model"
)

// CommandKind names what the remote client must do.
type CommandKind string

const (
	CmdStartCamera    CommandKind = "start_camera"
	CmdStopCamera     CommandKind = "stop_camera"
	CmdCapturePhoto   CommandKind = "capture_photo"
	CmdStartRecording CommandKind = "start_recording"
	CmdStopRecording  CommandKind = "stop_recording"
	CmdPause          CommandKind = "pause"
	CmdResume         CommandKind = "resume"
	CmdShowFeedback   CommandKind = "show_feedback"
	CmdShowResult     CommandKind = "show_result"
	CmdOpenSettings   CommandKind = "open_settings"
)

// Command is one instruction delivered to the remote client.
type Command struct {
	ID       string               `json:"id"`
	Kind     CommandKind          `json:"kind"`
	Discard  bool                 `json:"discard,omitempty"`
	Feedback *model.FeedbackRoute `json:"feedback,omitempty"`
	IssuedAt time.Time            `json:"issuedAt"`
}

// Reply is the client's answer to a command that expects one.
type Reply struct {
	Data  []byte
	Error string
}

// Error codes a client may report in Reply.Error.
const (
	ReplyPermissionDenied = "permission_denied"
	ReplyNotConnected     = "not_connected"
)

var (
	ErrClosed         = errors.New("remote device closed")
	ErrQueueFull      = errors.New("remote device command queue full")
	ErrUnknownCommand = errors.New("unknown or expired command")
	ErrDeviceFailure  = errors.New("remote device reported failure")
)

// expectsReply reports whether the issuing call blocks on the client.
func (k CommandKind) expectsReply(discard bool) bool {
	switch k {
	case CmdStartCamera, CmdCapturePhoto, CmdStartRecording:
		return true
	case CmdStopRecording:
		return !discard
	default:
		return false
	}
}
