// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigHolder_ReloadNotifiesListeners(t *testing.T) {
	path := writeConfig(t, "logLevel: info\n")
	loader := NewLoader(path, "")
	initial, err := loader.Load()
	require.NoError(t, err)

	holder := NewConfigHolder(initial, loader)
	ch := make(chan AppConfig, 1)
	holder.RegisterListener(ch)

	require.NoError(t, os.WriteFile(path, []byte("logLevel: debug\ncapture:\n  uploadUrl: https://upload.example.com/c\n"), 0o600))
	require.NoError(t, holder.Reload(context.Background()))

	assert.Equal(t, "debug", holder.Get().LogLevel)
	select {
	case got := <-ch:
		assert.Equal(t, "https://upload.example.com/c", got.Capture.UploadURL)
	default:
		t.Fatal("listener was not notified")
	}
}

func TestConfigHolder_ReloadFailureKeepsCurrent(t *testing.T) {
	path := writeConfig(t, "logLevel: warn\n")
	loader := NewLoader(path, "")
	initial, err := loader.Load()
	require.NoError(t, err)
	holder := NewConfigHolder(initial, loader)

	require.NoError(t, os.WriteFile(path, []byte("logLevel: shouting\n"), 0o600))
	require.Error(t, holder.Reload(context.Background()))
	assert.Equal(t, "warn", holder.Get().LogLevel)
}

func TestConfigHolder_ListenerFullDoesNotBlock(t *testing.T) {
	path := writeConfig(t, "")
	loader := NewLoader(path, "")
	initial, err := loader.Load()
	require.NoError(t, err)
	holder := NewConfigHolder(initial, loader)

	ch := make(chan AppConfig)
	holder.RegisterListener(ch)

	done := make(chan error, 1)
	go func() { done <- holder.Reload(context.Background()) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("reload blocked on a listener without buffer")
	}
}

func TestConfigHolder_WatchWithoutFileReturns(t *testing.T) {
	holder := NewConfigHolder(Defaults(), NewLoader("", ""))
	require.NoError(t, holder.Watch(context.Background()))
}

func TestConfigHolder_WatchReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, "logLevel: info\n")
	loader := NewLoader(path, "")
	initial, err := loader.Load()
	require.NoError(t, err)

	holder := NewConfigHolder(initial, loader)
	holder.debounce = 20 * time.Millisecond
	ch := make(chan AppConfig, 4)
	holder.RegisterListener(ch)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- holder.Watch(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// The watcher registers asynchronously; keep rewriting until it reacts.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case got := <-ch:
			assert.Equal(t, "error", got.LogLevel)
			assert.Equal(t, "error", holder.Get().LogLevel)
			return
		case <-tick.C:
			require.NoError(t, os.WriteFile(path, []byte("logLevel: error\n"), 0o600))
		case <-deadline:
			t.Fatal("watcher never reloaded the config")
		}
	}
}
