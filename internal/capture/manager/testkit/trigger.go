// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package testkit

import (
	"context"
	"sync"
)

// Trigger is a scriptable ports.CaptureTrigger.
type Trigger struct {
	Log *CallLog

	mu        sync.Mutex
	photos    [][]byte
	photoErr  error
	video     []byte
	recordErr error
}

// NewTrigger returns a trigger yielding a fixed JPEG marker and video payload.
func NewTrigger(log *CallLog) *Trigger {
	return &Trigger{Log: log, video: []byte("video-take")}
}

// QueuePhotos scripts the bytes returned by successive CapturePhoto calls.
// Once exhausted, a default payload is returned.
func (t *Trigger) QueuePhotos(photos ...[]byte) {
	t.mu.Lock()
	t.photos = append(t.photos, photos...)
	t.mu.Unlock()
}

// FailPhoto makes CapturePhoto return err.
func (t *Trigger) FailPhoto(err error) {
	t.mu.Lock()
	t.photoErr = err
	t.mu.Unlock()
}

// FailRecording makes StartRecording return err.
func (t *Trigger) FailRecording(err error) {
	t.mu.Lock()
	t.recordErr = err
	t.mu.Unlock()
}

func (t *Trigger) CapturePhoto(ctx context.Context) ([]byte, error) {
	t.Log.add(CallCapturePhoto)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.photoErr != nil {
		return nil, t.photoErr
	}
	if len(t.photos) > 0 {
		p := t.photos[0]
		t.photos = t.photos[1:]
		return p, nil
	}
	return []byte{0xFF, 0xD8, 0xFF}, nil
}

func (t *Trigger) StartRecording(ctx context.Context) error {
	t.Log.add(CallStartRecording)
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recordErr
}

func (t *Trigger) StopRecording(ctx context.Context, discard bool) ([]byte, error) {
	if discard {
		t.Log.add(CallDiscardRecording)
		return nil, nil
	}
	t.Log.add(CallStopRecording)
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.video, nil
}

func (t *Trigger) Pause()  { t.Log.add(CallPause) }
func (t *Trigger) Resume() { t.Log.add(CallResume) }
