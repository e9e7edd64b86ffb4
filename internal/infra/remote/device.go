// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package remote adapts a camera that lives on a remote client. Calls from
// the orchestrator become commands the client long-polls; media and
// acknowledgements posted back by the client complete the waiting call.
package remote

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ManuGH/capflow/internal/capture/clock"
	"github.com/ManuGH/capflow/internal/capture/model"
	"github.com/ManuGH/capflow/internal/capture/ports"
	xglog "github.com/ManuGH/capflow/internal/log"
	"github.com/ManuGH/capflow/internal/metrics"
)

const (
	defaultQueueLimit = 32
	replyClosed       = "closed"
)

var (
	_ ports.Camera         = (*Device)(nil)
	_ ports.CaptureTrigger = (*Device)(nil)
	_ ports.Navigator      = (*Device)(nil)
)

// Options configures a Device.
type Options struct {
	SessionID  string
	QueueLimit int
	Clock      clock.Clock
}

// Device is the per-session remote camera, trigger and navigator.
type Device struct {
	sessionID string
	limit     int
	clock     clock.Clock
	logger    zerolog.Logger

	mu        sync.Mutex
	queue     []Command
	wake      chan struct{}
	waiting   map[string]chan Reply
	connected bool
	closed    bool
}

// NewDevice returns an empty device for one session.
func NewDevice(opts Options) *Device {
	if opts.QueueLimit <= 0 {
		opts.QueueLimit = defaultQueueLimit
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	return &Device{
		sessionID: opts.SessionID,
		limit:     opts.QueueLimit,
		clock:     opts.Clock,
		logger:    xglog.WithComponent("remote").With().Str(xglog.FieldSessionID, opts.SessionID).Logger(),
		wake:      make(chan struct{}),
		waiting:   make(map[string]chan Reply),
	}
}

// Start asks the client to open its camera and waits for the answer.
func (d *Device) Start(ctx context.Context) error {
	_, err := d.call(ctx, Command{Kind: CmdStartCamera})
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.connected = true
	d.mu.Unlock()
	return nil
}

// Stop releases the remote camera. It does not wait for the client.
func (d *Device) Stop(_ context.Context) error {
	d.mu.Lock()
	d.connected = false
	d.mu.Unlock()
	return d.send(Command{Kind: CmdStopCamera})
}

// Connected reports whether the client confirmed a running camera.
func (d *Device) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected && !d.closed
}

// SetConnected records a camera state change reported by the client.
func (d *Device) SetConnected(v bool) {
	d.mu.Lock()
	d.connected = v
	d.mu.Unlock()
}

func (d *Device) CapturePhoto(ctx context.Context) ([]byte, error) {
	return d.call(ctx, Command{Kind: CmdCapturePhoto})
}

func (d *Device) StartRecording(ctx context.Context) error {
	_, err := d.call(ctx, Command{Kind: CmdStartRecording})
	return err
}

func (d *Device) StopRecording(ctx context.Context, discard bool) ([]byte, error) {
	if discard {
		return nil, d.send(Command{Kind: CmdStopRecording, Discard: true})
	}
	return d.call(ctx, Command{Kind: CmdStopRecording})
}

func (d *Device) Pause()  { d.notify(Command{Kind: CmdPause}) }
func (d *Device) Resume() { d.notify(Command{Kind: CmdResume}) }

func (d *Device) ShowFeedback(route model.FeedbackRoute) {
	d.notify(Command{Kind: CmdShowFeedback, Feedback: &route})
}

func (d *Device) ShowResult()   { d.notify(Command{Kind: CmdShowResult}) }
func (d *Device) OpenSettings() { d.notify(Command{Kind: CmdOpenSettings}) }

// Next returns the oldest undelivered command, waiting until one is queued
// or ctx is done. The boolean is false when nothing arrived in time.
func (d *Device) Next(ctx context.Context) (Command, bool, error) {
	for {
		d.mu.Lock()
		if d.closed {
			d.mu.Unlock()
			return Command{}, false, ErrClosed
		}
		if len(d.queue) > 0 {
			cmd := d.queue[0]
			d.queue = d.queue[1:]
			d.mu.Unlock()
			metrics.RecordDeviceCommand(string(cmd.Kind), "delivered")
			return cmd, true, nil
		}
		wake := d.wake
		d.mu.Unlock()

		select {
		case <-ctx.Done():
			return Command{}, false, nil
		case <-wake:
		}
	}
}

// Complete delivers the client's reply to the call waiting on id.
func (d *Device) Complete(id string, reply Reply) error {
	d.mu.Lock()
	ch, ok := d.waiting[id]
	if ok {
		delete(d.waiting, id)
	}
	d.mu.Unlock()
	if !ok {
		return ErrUnknownCommand
	}
	ch <- reply
	return nil
}

// Pending returns the number of queued, undelivered commands.
func (d *Device) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Close fails every waiting call and wakes all pollers.
func (d *Device) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.queue = nil
	for _, ch := range d.waiting {
		ch <- Reply{Error: replyClosed}
	}
	d.waiting = map[string]chan Reply{}
	close(d.wake)
	d.mu.Unlock()
}

// call queues cmd and blocks until the client replies or ctx is done.
func (d *Device) call(ctx context.Context, cmd Command) ([]byte, error) {
	reply := make(chan Reply, 1)
	id, err := d.enqueue(cmd, reply)
	if err != nil {
		return nil, err
	}
	select {
	case r := <-reply:
		if r.Error != "" {
			metrics.RecordDeviceCommand(string(cmd.Kind), "failed")
			return nil, replyError(cmd.Kind, r.Error)
		}
		metrics.RecordDeviceCommand(string(cmd.Kind), "completed")
		return r.Data, nil
	case <-ctx.Done():
		d.withdraw(id)
		metrics.RecordDeviceCommand(string(cmd.Kind), "cancelled")
		return nil, ctx.Err()
	}
}

func (d *Device) send(cmd Command) error {
	_, err := d.enqueue(cmd, nil)
	return err
}

// notify is send for callers that cannot report an error.
func (d *Device) notify(cmd Command) {
	if err := d.send(cmd); err != nil {
		d.logger.Warn().Err(err).Str("kind", string(cmd.Kind)).Msg("dropping remote command")
	}
}

func (d *Device) enqueue(cmd Command, reply chan Reply) (string, error) {
	cmd.ID = uuid.NewString()
	cmd.IssuedAt = d.clock.Now()

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return "", ErrClosed
	}
	if len(d.queue) >= d.limit {
		d.mu.Unlock()
		metrics.RecordDeviceCommand(string(cmd.Kind), "dropped")
		return "", ErrQueueFull
	}
	d.queue = append(d.queue, cmd)
	if reply != nil && cmd.Kind.expectsReply(cmd.Discard) {
		d.waiting[cmd.ID] = reply
	}
	close(d.wake)
	d.wake = make(chan struct{})
	d.mu.Unlock()

	metrics.RecordDeviceCommand(string(cmd.Kind), "queued")
	d.logger.Debug().Str("kind", string(cmd.Kind)).Str("command_id", cmd.ID).Msg("remote command queued")
	return cmd.ID, nil
}

// withdraw forgets an abandoned call so a late reply or poll cannot act on it.
func (d *Device) withdraw(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.waiting, id)
	for i, c := range d.queue {
		if c.ID == id {
			d.queue = append(d.queue[:i:i], d.queue[i+1:]...)
			break
		}
	}
}

func replyError(kind CommandKind, code string) error {
	switch code {
	case ReplyPermissionDenied:
		return ports.ErrPermissionDenied
	case ReplyNotConnected:
		return ports.ErrNotConnected
	case replyClosed:
		return ErrClosed
	}
	return fmt.Errorf("%s: %w: %s", kind, ErrDeviceFailure, code)
}
