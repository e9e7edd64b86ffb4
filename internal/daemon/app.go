// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/capflow/internal/config"
)

// App owns the long-lived runtime lifecycle (config watcher, reload wiring)
// and delegates server management to Manager.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	cfgHolder    *config.ConfigHolder
	reloadSignal os.Signal
	onReload     []func(config.AppConfig)
}

// NewApp creates a new App orchestrator. cfgHolder may be nil when the
// configuration is static.
func NewApp(logger zerolog.Logger, manager Manager, cfgHolder *config.ConfigHolder) *App {
	return &App{
		logger:       logger,
		manager:      manager,
		cfgHolder:    cfgHolder,
		reloadSignal: syscall.SIGHUP,
		onReload:     []func(config.AppConfig){ApplyLogLevel},
	}
}

// OnReload registers fn to run with every successfully reloaded config.
func (a *App) OnReload(fn func(config.AppConfig)) {
	a.onReload = append(a.onReload, fn)
}

// Run starts all owned background subsystems and blocks until ctx is cancelled or a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)

	if a.cfgHolder != nil {
		// Config watcher is best-effort: a failing watcher leaves the daemon
		// on its current configuration.
		g.Go(func() error {
			if err := a.cfgHolder.Watch(ctx); err != nil {
				a.logger.Warn().Err(err).Str("event", "config.watcher_start_failed").Msg("failed to start config watcher")
			}
			return nil
		})

		applyCh := make(chan config.AppConfig, 1)
		a.cfgHolder.RegisterListener(applyCh)
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case cfg := <-applyCh:
					for _, fn := range a.onReload {
						fn(cfg)
					}
				}
			}
		})
	}

	// SIGHUP trigger for manual reload.
	if a.cfgHolder != nil && a.reloadSignal != nil {
		g.Go(func() error {
			hupChan := make(chan os.Signal, 1)
			signal.Notify(hupChan, a.reloadSignal)
			defer signal.Stop(hupChan)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().
						Str("event", "config.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading config")

					if err := a.cfgHolder.Reload(ctx); err != nil {
						a.logger.Warn().
							Err(err).
							Str("event", "config.reload_failed").
							Msg("config reload failed")
					}
				}
			}
		})
	}

	// Main server lifecycle.
	g.Go(func() error {
		return a.manager.Start(ctx)
	})

	return g.Wait()
}

// ApplyLogLevel switches the global log level to the one in cfg. An invalid
// level leaves the current one in place.
func ApplyLogLevel(cfg config.AppConfig) {
	if cfg.LogLevel == "" {
		return
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return
	}
	if zerolog.GlobalLevel() != level {
		zerolog.SetGlobalLevel(level)
	}
}
