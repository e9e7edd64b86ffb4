// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package daemon wires the capture services and runs the HTTP server until
// shutdown.
package daemon

import (
	"context"
	"fmt"
	"io"

	"github.com/ManuGH/capflow/internal/api"
	"github.com/ManuGH/capflow/internal/bus"
	"github.com/ManuGH/capflow/internal/capture/ports"
	"github.com/ManuGH/capflow/internal/config"
	"github.com/ManuGH/capflow/internal/infra/evalclient"
)

// Services is the wired session runtime.
type Services struct {
	Hub       *api.Hub
	Server    *api.Server
	Evaluator *evalclient.Evaluator
	Uploader  *evalclient.Uploader
	Bus       bus.Bus
}

// BuildServices creates the evaluation and upload clients, the session hub
// and the API server from the current configuration. Evaluation is only
// wired when a base URL is configured; sessions asking for it without one
// fail their attempts with a missing-evaluator error.
func BuildServices(ctx context.Context, cfg api.ConfigSource, version string) (*Services, error) {
	current := cfg.Get()
	snapshots, err := newBus(ctx, current.Bus)
	if err != nil {
		return nil, err
	}
	clientCfg := evalclient.Config{
		BaseURL: current.Evaluation.BaseURL,
		APIKey:  current.Evaluation.APIKey,
		Timeout: current.Evaluation.Timeout,
	}

	svc := &Services{Uploader: evalclient.NewUploader(clientCfg), Bus: snapshots}
	breakers := map[string]api.Breaker{"upload": svc.Uploader.Breaker()}

	var evaluator ports.Evaluator
	if current.Evaluation.BaseURL != "" {
		e, err := evalclient.NewEvaluator(clientCfg)
		if err != nil {
			_ = svc.closeBus()
			return nil, fmt.Errorf("evaluation client: %w", err)
		}
		svc.Evaluator = e
		evaluator = e
		breakers["evaluation"] = e.Breaker()
	}

	svc.Hub = api.NewHub(api.HubOptions{
		Config:    cfg,
		Evaluator: evaluator,
		Uploader:  svc.Uploader,
		Bus:       snapshots,
	})
	svc.Server = api.NewServer(api.ServerOptions{
		Config:   cfg,
		Hub:      svc.Hub,
		Version:  version,
		Breakers: breakers,
	})
	return svc, nil
}

func newBus(ctx context.Context, cfg config.BusConfig) (bus.Bus, error) {
	if cfg.Backend != "redis" {
		return bus.NewMemoryBus(), nil
	}
	b, err := bus.NewRedisBus(ctx, bus.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot bus: %w", err)
	}
	return b, nil
}

func (s *Services) closeBus() error {
	if c, ok := s.Bus.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Register installs the shutdown hooks of m. Hooks run LIFO, so sessions
// are torn down before the bus they publish on is closed.
func (s *Services) Register(m Manager) {
	m.RegisterShutdownHook("snapshot_bus", func(context.Context) error {
		return s.closeBus()
	})
	m.RegisterShutdownHook("session_hub", func(ctx context.Context) error {
		return s.Hub.Shutdown(ctx)
	})
}
