// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package testkit

import "sync"

// CallLog records collaborator calls across fakes in order.
type CallLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *CallLog) add(name string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.entries = append(l.entries, name)
	l.mu.Unlock()
}

// Entries returns a copy of the recorded calls.
func (l *CallLog) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

// Count returns how often name was recorded.
func (l *CallLog) Count(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e == name {
			n++
		}
	}
	return n
}

// Call names recorded by the fakes.
const (
	CallCameraStart      = "camera.start"
	CallCameraStop       = "camera.stop"
	CallCapturePhoto     = "trigger.capture_photo"
	CallStartRecording   = "trigger.start_recording"
	CallStopRecording    = "trigger.stop_recording"
	CallDiscardRecording = "trigger.discard_recording"
	CallPause            = "trigger.pause"
	CallResume           = "trigger.resume"
	CallEvaluate         = "evaluator.evaluate"
	CallUpload           = "uploader.upload"
	CallShowFeedback     = "navigator.show_feedback"
	CallShowResult       = "navigator.show_result"
	CallOpenSettings     = "navigator.open_settings"
	CallCaptureTaken     = "listener.capture_taken"
	CallEvaluationResult = "listener.evaluation_completed"
	CallUploadCompleted  = "listener.upload_completed"
	CallUploadFailed     = "listener.upload_failed"
)
