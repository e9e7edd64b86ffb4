// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/capflow/internal/log"
	"github.com/ManuGH/capflow/internal/metrics"
)

const defaultReloadDebounce = 500 * time.Millisecond

// ConfigHolder holds configuration with atomic reloading capability.
// Running sessions keep the FlowConfig they were created with; new sessions
// read the current one.
type ConfigHolder struct {
	mu         sync.RWMutex
	current    AppConfig
	loader     *Loader
	configPath string
	debounce   time.Duration
	logger     zerolog.Logger

	reloadMu        sync.RWMutex
	reloadListeners []chan<- AppConfig
}

func NewConfigHolder(initial AppConfig, loader *Loader) *ConfigHolder {
	return &ConfigHolder{
		current:    initial,
		loader:     loader,
		configPath: loader.Path(),
		debounce:   defaultReloadDebounce,
		logger:     xglog.WithComponent("config"),
	}
}

// Get returns the current configuration (thread-safe read).
func (h *ConfigHolder) Get() AppConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Reload reloads configuration from file and environment. On failure the
// old configuration is kept.
func (h *ConfigHolder) Reload(_ context.Context) error {
	h.logger.Info().Str("event", "config.reload_start").Msg("reloading configuration")

	newCfg, err := h.loader.Load()
	if err != nil {
		metrics.RecordConfigReload(false)
		h.logger.Error().
			Err(err).
			Str("event", "config.reload_failed").
			Msg("failed to load new configuration")
		return fmt.Errorf("load config: %w", err)
	}

	h.mu.Lock()
	oldCfg := h.current
	h.current = newCfg
	h.mu.Unlock()

	metrics.RecordConfigReload(true)
	h.notifyListeners(newCfg)
	h.logChanges(oldCfg, newCfg)

	h.logger.Info().
		Str("event", "config.reload_success").
		Msg("configuration reloaded successfully")
	return nil
}

// Watch watches the config file until ctx is done and reloads on change.
// Without a config file it returns immediately.
func (h *ConfigHolder) Watch(ctx context.Context) error {
	if h.configPath == "" {
		h.logger.Info().
			Str("event", "config.watcher_disabled").
			Msg("config file watcher disabled (using ENV-only configuration)")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory so editors that replace the file are seen.
	if err := watcher.Add(filepath.Dir(h.configPath)); err != nil {
		return fmt.Errorf("watch config dir: %w", err)
	}
	h.logger.Info().
		Str("event", "config.watcher_started").
		Str("path", h.configPath).
		Msg("watching config file for changes")

	h.watchLoop(ctx, watcher)
	return nil
}

func (h *ConfigHolder) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()
	target := filepath.Clean(h.configPath)

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Str("event", "config.watcher_stopped").Msg("config watcher stopped")
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			h.logger.Debug().
				Str("event", "config.file_changed").
				Str("op", event.Op.String()).
				Msg("config file changed")

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(h.debounce, func() {
				if ctx.Err() != nil {
					return
				}
				if err := h.Reload(ctx); err != nil {
					h.logger.Error().
						Err(err).
						Str("event", "config.auto_reload_failed").
						Msg("automatic config reload failed")
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().
				Err(err).
				Str("event", "config.watcher_error").
				Msg("config watcher error")
		}
	}
}

// RegisterListener registers a channel to receive config reload notifications.
// The caller is responsible for closing the channel.
func (h *ConfigHolder) RegisterListener(ch chan<- AppConfig) {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()
	h.reloadListeners = append(h.reloadListeners, ch)
}

// notifyListeners sends the new config to all registered listeners (non-blocking).
func (h *ConfigHolder) notifyListeners(newCfg AppConfig) {
	h.reloadMu.RLock()
	defer h.reloadMu.RUnlock()

	for _, ch := range h.reloadListeners {
		select {
		case ch <- newCfg:
		default:
			h.logger.Warn().
				Str("event", "config.listener_skip").
				Msg("skipped notifying listener (channel full)")
		}
	}
}

func (h *ConfigHolder) logChanges(old, newCfg AppConfig) {
	if old.LogLevel != newCfg.LogLevel {
		h.logger.Info().Str("old", old.LogLevel).Str("new", newCfg.LogLevel).Msg("config changed: LogLevel")
	}
	if old.Capture.UploadURL != newCfg.Capture.UploadURL {
		h.logger.Info().
			Str("old", maskURL(old.Capture.UploadURL)).
			Str("new", maskURL(newCfg.Capture.UploadURL)).
			Msg("config changed: Capture.UploadURL")
	}
	if old.Capture.Face != newCfg.Capture.Face {
		h.logger.Info().Msg("config changed: Capture.Face")
	}
	if old.Capture.Document != newCfg.Capture.Document {
		h.logger.Info().Msg("config changed: Capture.Document")
	}
	if old.Evaluation.BaseURL != newCfg.Evaluation.BaseURL {
		h.logger.Info().
			Str("old", maskURL(old.Evaluation.BaseURL)).
			Str("new", maskURL(newCfg.Evaluation.BaseURL)).
			Msg("config changed: Evaluation.BaseURL")
	}
	if old.API.ListenAddr != newCfg.API.ListenAddr {
		h.logger.Warn().
			Str("old", old.API.ListenAddr).
			Str("new", newCfg.API.ListenAddr).
			Msg("config changed: API.ListenAddr (takes effect after restart)")
	}
}

// maskURL keeps only scheme and host of rawURL for logging.
func maskURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "***redacted***"
	}
	return u.Scheme + "://" + u.Host
}
