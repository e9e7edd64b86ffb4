// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogOutput(t *testing.T) {
	_, console := logOutput("Console").(zerolog.ConsoleWriter)
	assert.True(t, console)
	assert.Equal(t, os.Stdout, logOutput("json"))
}

func TestRun_FailsOnInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("unknownKey: true\n"), 0o600))
	err := run(path, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}
