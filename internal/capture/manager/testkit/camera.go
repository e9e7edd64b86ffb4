// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package testkit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Camera is a scriptable ports.Camera.
type Camera struct {
	Log *CallLog

	mu       sync.Mutex
	startErr error
	offline  bool
	online   atomic.Bool
}

// NewCamera returns a camera that reports connected once started.
func NewCamera(log *CallLog) *Camera {
	return &Camera{Log: log}
}

// FailStart makes the next Start calls return err.
func (c *Camera) FailStart(err error) {
	c.mu.Lock()
	c.startErr = err
	c.mu.Unlock()
}

// KeepOffline makes Start succeed without the camera ever reporting frames.
func (c *Camera) KeepOffline() {
	c.mu.Lock()
	c.offline = true
	c.mu.Unlock()
}

// SetConnected overrides the connection state reported to polls.
func (c *Camera) SetConnected(v bool) {
	c.online.Store(v)
}

func (c *Camera) Start(ctx context.Context) error {
	c.Log.add(CallCameraStart)
	c.mu.Lock()
	err, offline := c.startErr, c.offline
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.online.Store(!offline)
	return nil
}

func (c *Camera) Stop(ctx context.Context) error {
	c.Log.add(CallCameraStop)
	c.online.Store(false)
	return nil
}

func (c *Camera) Connected() bool {
	return c.online.Load()
}
