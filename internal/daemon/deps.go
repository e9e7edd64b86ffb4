// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/capflow/internal/config"
)

// Deps contains dependencies required by the daemon Manager.
type Deps struct {
	// Logger is the structured logger for the daemon
	Logger zerolog.Logger

	// APIHandler is the HTTP handler for the API server
	APIHandler http.Handler
}

// ServerConfig holds the HTTP server settings of the daemon.
type ServerConfig struct {
	ListenAddr        string
	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	ShutdownTimeout   time.Duration
}

// ServerConfigFrom derives the server settings from the application config.
// No write timeout is set: command long-polls and snapshot streams outlive
// any fixed response deadline.
func ServerConfigFrom(cfg config.AppConfig) ServerConfig {
	return ServerConfig{
		ListenAddr:        cfg.API.ListenAddr,
		ReadHeaderTimeout: cfg.API.ReadHeaderTimeout,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    1 << 20,
		ShutdownTimeout:   cfg.API.ShutdownTimeout,
	}
}

// Validate checks if the dependencies are valid.
func (d *Deps) Validate() error {
	if d.Logger.GetLevel() == zerolog.Disabled {
		return ErrMissingLogger
	}
	if d.APIHandler == nil {
		return ErrMissingAPIHandler
	}
	return nil
}
