// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ManuGH/capflow/internal/bus"
	"github.com/ManuGH/capflow/internal/capture/clock"
	"github.com/ManuGH/capflow/internal/capture/manager"
	"github.com/ManuGH/capflow/internal/capture/model"
	"github.com/ManuGH/capflow/internal/capture/ports"
	"github.com/ManuGH/capflow/internal/config"
	"github.com/ManuGH/capflow/internal/infra/remote"
	"github.com/ManuGH/capflow/internal/log"
	"github.com/ManuGH/capflow/internal/metrics"
)

// ConfigSource yields the current configuration. Implemented by
// config.ConfigHolder.
type ConfigSource interface {
	Get() config.AppConfig
}

// HubOptions wires a Hub. Evaluator may be nil when no evaluation service
// is configured.
type HubOptions struct {
	Config    ConfigSource
	Evaluator ports.Evaluator
	Uploader  ports.Uploader
	Bus       bus.Bus
	Listener  ports.Listener
	Clock     clock.Clock
}

// CreateRequest describes a new session.
type CreateRequest struct {
	Flow model.Flow `json:"flow"`
	// UploadURL overrides the configured destination; it must pass the
	// outbound policy.
	UploadURL   string `json:"uploadUrl,omitempty"`
	Autocapture *bool  `json:"autocapture,omitempty"`
}

// Session is one hosted capture session with its remote device.
type Session struct {
	ID        string
	Flow      model.Flow
	CreatedAt time.Time

	orch   *manager.Orchestrator
	device *remote.Device
	cfg    manager.FlowConfig
	done   chan struct{}
}

// Snapshot returns the current session state.
func (s *Session) Snapshot() model.Snapshot { return s.orch.Snapshot() }

// Done is closed once the session has been removed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Hub owns every hosted session.
type Hub struct {
	opts HubOptions

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool
}

// NewHub returns an empty hub.
func NewHub(opts HubOptions) *Hub {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Bus == nil {
		opts.Bus = bus.NewMemoryBus()
	}
	return &Hub{opts: opts, sessions: make(map[string]*Session)}
}

// Bus returns the snapshot bus sessions publish on.
func (h *Hub) Bus() bus.Bus { return h.opts.Bus }

// Create builds and registers a session. The FlowConfig is taken from the
// configuration current at creation and stays fixed for the session.
func (h *Hub) Create(ctx context.Context, req CreateRequest) (*Session, error) {
	if !req.Flow.Valid() {
		return nil, ErrInvalidFlow
	}
	cfg := h.opts.Config.Get()
	fc := cfg.Capture.FlowConfig(req.Flow)
	if req.Autocapture != nil {
		fc.Autocapture = *req.Autocapture
	}
	if req.UploadURL != "" {
		u, err := cfg.Capture.Outbound.Check(ctx, req.UploadURL)
		if err != nil {
			return nil, withDetail(ErrUploadRefused, err)
		}
		fc.UploadURL = u.String()
	}
	if fc.UploadURL == "" {
		return nil, withDetail(ErrInvalidConfig, errors.New("no upload url configured"))
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrShuttingDown
	}
	if limit := cfg.API.MaxSessions; limit > 0 && len(h.sessions) >= limit {
		return nil, ErrSessionLimit
	}

	id := uuid.NewString()
	device := remote.NewDevice(remote.Options{SessionID: id, Clock: h.opts.Clock})
	orch, err := manager.New(manager.Options{
		SessionID: id,
		Flow:      req.Flow,
		Config:    fc,
		Camera:    device,
		Trigger:   device,
		Evaluator: h.opts.Evaluator,
		Uploader:  h.opts.Uploader,
		View:      bus.NewSnapshotView(h.opts.Bus, id, cfg.API.StreamPublishTimeout),
		Navigator: device,
		Listener:  h.opts.Listener,
		Clock:     h.opts.Clock,
	})
	if err != nil {
		device.Close()
		return nil, withDetail(ErrInvalidConfig, err)
	}

	s := &Session{ID: id, Flow: req.Flow, CreatedAt: h.opts.Clock.Now(), orch: orch, device: device, cfg: fc, done: make(chan struct{})}
	h.sessions[id] = s
	metrics.RecordSessionCreated(string(req.Flow))
	logger := log.WithComponentFromContext(ctx, "hub")
	logger.Info().
		Str(log.FieldSessionID, id).
		Str(log.FieldFlow, string(req.Flow)).
		Bool("autocapture", fc.Autocapture).
		Msg("session created")
	return s, nil
}

// Get returns the session with id.
func (h *Hub) Get(id string) (*Session, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// List returns the snapshots of all sessions, oldest first.
func (h *Hub) List() []model.Snapshot {
	h.mu.RLock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	out := make([]model.Snapshot, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.orch.Snapshot())
	}
	return out
}

// Len returns the number of hosted sessions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Remove tears the session down and forgets it.
func (h *Hub) Remove(ctx context.Context, id string) error {
	h.mu.Lock()
	s, ok := h.sessions[id]
	if ok {
		delete(h.sessions, id)
	}
	h.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	return h.teardown(ctx, s)
}

// Shutdown refuses new sessions and tears down all existing ones.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	sessions := h.sessions
	h.sessions = make(map[string]*Session)
	h.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		if err := h.teardown(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *Hub) teardown(ctx context.Context, s *Session) error {
	phase := s.orch.Snapshot().Phase
	// Closing the device fails collaborator calls still waiting on the client.
	s.device.Close()
	s.orch.Disappeared()

	timeout := s.cfg.TeardownTimeout
	if timeout <= 0 {
		timeout = manager.DefaultTeardownTimeout
	}
	closeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := s.orch.Close(closeCtx)
	close(s.done)

	metrics.RecordSessionEnded(string(s.Flow), string(phase))
	logger := log.WithComponentFromContext(ctx, "hub")
	ev := logger.Info()
	if err != nil {
		ev = logger.Warn().Err(err)
	}
	ev.Str(log.FieldSessionID, s.ID).Str("phase", string(phase)).Msg("session removed")
	return err
}
