// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/capflow/internal/capture/manager/testkit"
	"github.com/ManuGH/capflow/internal/capture/model"
	"github.com/ManuGH/capflow/internal/config"
	platformnet "github.com/ManuGH/capflow/internal/platform/net"
)

type staticConfig struct{ cfg config.AppConfig }

func (s staticConfig) Get() config.AppConfig { return s.cfg }

func testConfig() config.AppConfig {
	cfg := config.Defaults()
	cfg.API.APIToken = "test-token"
	cfg.API.CommandWait = 2 * time.Second
	cfg.API.RateLimit = 0
	cfg.Capture.UploadURL = "https://upload.example.com/captures"
	cfg.Capture.CameraPollInterval = 10 * time.Millisecond
	cfg.Capture.Document.Evaluate = false
	return cfg
}

func newTestHub(t *testing.T, cfg config.AppConfig) (*Hub, *testkit.Uploader) {
	t.Helper()
	uploader := testkit.NewUploader(&testkit.CallLog{})
	hub := NewHub(HubOptions{Config: staticConfig{cfg}, Uploader: uploader})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = hub.Shutdown(ctx)
	})
	return hub, uploader
}

func TestHub_CreateRespectsSessionLimit(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cfg := testConfig()
	cfg.API.MaxSessions = 1
	hub, _ := newTestHub(t, cfg)
	ctx := context.Background()

	first, err := hub.Create(ctx, CreateRequest{Flow: model.FlowDocument})
	require.NoError(t, err)
	assert.Equal(t, model.PhaseUninitialized, first.Snapshot().Phase)

	_, err = hub.Create(ctx, CreateRequest{Flow: model.FlowFace})
	require.ErrorIs(t, err, ErrSessionLimit)

	require.NoError(t, hub.Remove(ctx, first.ID))
	require.ErrorIs(t, hub.Remove(ctx, first.ID), ErrSessionNotFound)

	second, err := hub.Create(ctx, CreateRequest{Flow: model.FlowFace})
	require.NoError(t, err)
	assert.Equal(t, model.FlowFace, second.Flow)
	assert.Equal(t, 1, hub.Len())
	require.NoError(t, hub.Shutdown(ctx))
}

func TestHub_CreateRejectsUnknownFlow(t *testing.T) {
	hub, _ := newTestHub(t, testConfig())
	_, err := hub.Create(context.Background(), CreateRequest{Flow: "passport"})
	require.ErrorIs(t, err, ErrInvalidFlow)
}

func TestHub_CreateRequiresUploadURL(t *testing.T) {
	cfg := testConfig()
	cfg.Capture.UploadURL = ""
	hub, _ := newTestHub(t, cfg)
	_, err := hub.Create(context.Background(), CreateRequest{Flow: model.FlowDocument})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestHub_UploadURLFollowsOutboundPolicy(t *testing.T) {
	cfg := testConfig()
	hub, _ := newTestHub(t, cfg)
	ctx := context.Background()

	_, err := hub.Create(ctx, CreateRequest{Flow: model.FlowDocument, UploadURL: "https://203.0.113.7/upload"})
	require.ErrorIs(t, err, ErrUploadRefused)
	require.True(t, errors.Is(err, platformnet.ErrOutboundDisabled))

	cfg.Capture.Outbound = platformnet.OutboundPolicy{
		Enabled: true,
		CIDRs:   []string{"203.0.113.0/24"},
		Ports:   []int{443},
		Schemes: []string{"https"},
	}
	hub, _ = newTestHub(t, cfg)

	s, err := hub.Create(ctx, CreateRequest{Flow: model.FlowDocument, UploadURL: "https://203.0.113.7/upload"})
	require.NoError(t, err)
	assert.Equal(t, "https://203.0.113.7/upload", s.cfg.UploadURL)

	_, err = hub.Create(ctx, CreateRequest{Flow: model.FlowDocument, UploadURL: "https://198.51.100.1/upload"})
	require.ErrorIs(t, err, ErrUploadRefused)
	require.True(t, errors.Is(err, platformnet.ErrOutboundNotAllowed))
}

func TestHub_AutocaptureOverride(t *testing.T) {
	hub, _ := newTestHub(t, testConfig())
	off := false
	s, err := hub.Create(context.Background(), CreateRequest{Flow: model.FlowDocument, Autocapture: &off})
	require.NoError(t, err)
	assert.False(t, s.cfg.Autocapture)
}

func TestHub_ShutdownRefusesNewSessions(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	hub, _ := newTestHub(t, testConfig())
	ctx := context.Background()
	s, err := hub.Create(ctx, CreateRequest{Flow: model.FlowDocument})
	require.NoError(t, err)
	s.orch.Loaded()
	s.orch.Appeared()

	require.NoError(t, hub.Shutdown(ctx))
	select {
	case <-s.Done():
	default:
		t.Fatal("session not marked done")
	}
	_, err = hub.Create(ctx, CreateRequest{Flow: model.FlowDocument})
	require.ErrorIs(t, err, ErrShuttingDown)
	assert.Empty(t, hub.List())
}

func TestHub_ListOrdersByCreation(t *testing.T) {
	hub, _ := newTestHub(t, testConfig())
	ctx := context.Background()
	var ids []string
	for i := 0; i < 3; i++ {
		s, err := hub.Create(ctx, CreateRequest{Flow: model.FlowFace})
		require.NoError(t, err)
		ids = append(ids, s.ID)
		time.Sleep(time.Millisecond)
	}
	list := hub.List()
	require.Len(t, list, 3)
	for i, snap := range list {
		assert.Equal(t, ids[i], snap.SessionID)
	}
}
