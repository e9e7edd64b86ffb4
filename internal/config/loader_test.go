// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/capflow/internal/capture/manager"
	"github.com/ManuGH/capflow/internal/capture/model"
	"github.com/ManuGH/capflow/internal/validate"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := NewLoader("", "v1.2.3").Load()
	require.NoError(t, err)
	require.Equal(t, "v1.2.3", cfg.Version)
	require.Equal(t, ":8088", cfg.API.ListenAddr)
	require.Equal(t, manager.DefaultFaceFallbackTimeout, cfg.Capture.Face.ManualFallbackTimeout)
	require.Equal(t, manager.DefaultDocumentFallbackTimeout, cfg.Capture.Document.ManualFallbackTimeout)
	require.True(t, cfg.Capture.Document.Evaluate)
	require.False(t, cfg.Capture.Face.Evaluate)
}

func TestStrictConfig_FailsOnUnknownFields(t *testing.T) {
	path := writeConfig(t, `
capture:
  uploadUrl: https://upload.example.com/captures
  unknownField: should_fail
`)
	_, err := NewLoader(path, "").Load()
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnknownConfigField), "got %v", err)
	require.Contains(t, err.Error(), "unknownField")
}

func TestStrictConfig_RejectsMultipleDocuments(t *testing.T) {
	path := writeConfig(t, "logLevel: debug\n---\nlogLevel: info\n")
	_, err := NewLoader(path, "").Load()
	require.ErrorContains(t, err, "multiple documents")
}

func TestLoad_RejectsNonYAMLExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capflow.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))
	_, err := NewLoader(path, "").Load()
	require.ErrorContains(t, err, "only YAML supported")
}

func TestLoad_EmptyFileKeepsDefaults(t *testing.T) {
	cfg, err := NewLoader(writeConfig(t, ""), "").Load()
	require.NoError(t, err)
	require.Equal(t, Defaults().Capture, cfg.Capture)
}

func TestLoad_Precedence(t *testing.T) {
	path := writeConfig(t, `
logLevel: debug
capture:
  uploadUrl: https://file.example.com/captures
  country: DE
  documentType: ID_CARD
  document:
    autocapture: false
    manualFallbackTimeout: 8s
    maxAttempts: 5
  face:
    countdownTicks: 5
`)
	t.Setenv("CAPFLOW_UPLOAD_URL", "https://env.example.com/captures")
	t.Setenv("CAPFLOW_DOCUMENT_MAX_ATTEMPTS", "4")

	cfg, err := NewLoader(path, "").Load()
	require.NoError(t, err)

	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "https://env.example.com/captures", cfg.Capture.UploadURL, "env beats file")
	require.Equal(t, 4, cfg.Capture.Document.MaxAttempts, "env beats file")
	require.False(t, cfg.Capture.Document.Autocapture)
	require.Equal(t, 8*time.Second, cfg.Capture.Document.ManualFallbackTimeout)
	require.Equal(t, 5, cfg.Capture.Face.CountdownTicks)
	require.Equal(t, Defaults().Capture.Face.SufficientDuration, cfg.Capture.Face.SufficientDuration, "unset file keys keep defaults")
}

func TestLoad_ValidationCollectsAllErrors(t *testing.T) {
	path := writeConfig(t, `
logLevel: loud
api:
  listenAddr: nowhere
capture:
  uploadUrl: ftp://upload.example.com
  document:
    maxAttempts: 0
`)
	_, err := NewLoader(path, "").Load()
	require.Error(t, err)

	var verr validate.ValidationError
	require.True(t, errors.As(err, &verr))
	fields := make([]string, 0, len(verr.Errors()))
	for _, e := range verr.Errors() {
		fields = append(fields, e.Field)
	}
	want := []string{"logLevel", "api.listenAddr", "capture.uploadUrl", "capture.document.maxAttempts"}
	if diff := cmp.Diff(want, fields); diff != "" {
		t.Fatalf("validation fields mismatch (-want +got):\n%s", diff)
	}
}

func TestLoader_UnknownEnvKeys(t *testing.T) {
	l := NewLoader("", "")
	_, err := l.Load()
	require.NoError(t, err)

	unknown := l.UnknownEnvKeys([]string{
		"CAPFLOW_UPLOAD_URL=https://x",
		"CAPFLOW_UPLAOD_URL=https://typo",
		"HOME=/root",
	})
	require.Equal(t, []string{"CAPFLOW_UPLAOD_URL"}, unknown)
}

func TestCaptureConfig_FlowConfig(t *testing.T) {
	c := Defaults().Capture
	c.UploadURL = "https://upload.example.com/captures"
	c.Country = "FR"
	c.DocumentType = "PASSPORT"

	got := c.FlowConfig(model.FlowDocument)
	want := manager.DefaultFlowConfig(model.FlowDocument)
	want.UploadURL = c.UploadURL
	want.Metadata = model.EvaluationMetadata{Country: "FR", DocumentType: "PASSPORT"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("document flow config mismatch (-want +got):\n%s", diff)
	}

	face := c.FlowConfig(model.FlowFace)
	require.True(t, face.RecordVideo)
	require.Equal(t, []model.Side{model.SideNone}, face.Sides)
	require.NoError(t, face.Validate(model.FlowFace))
}

func TestCaptureConfig_MetadataNormalized(t *testing.T) {
	c := Defaults().Capture
	c.Country = " CI "
	// "CARTE D'IDENTITE" with a decomposed E + combining acute accent.
	c.DocumentType = "CARTE D'IDENTITE\u0301"

	got := c.FlowConfig(model.FlowDocument).Metadata
	require.Equal(t, "CI", got.Country)
	require.Equal(t, "CARTE D'IDENTIT\u00c9", got.DocumentType)
}

func TestMaskURL(t *testing.T) {
	require.Equal(t, "", maskURL(""))
	require.Equal(t, "https://eval.example.com", maskURL("https://user:pw@eval.example.com/v1?key=secret"))
	require.True(t, strings.HasPrefix(maskURL("::not a url"), "***"))
}

func TestLoad_OutboundAndOrigins(t *testing.T) {
	t.Setenv("CAPFLOW_OUTBOUND_ENABLED", "true")
	t.Setenv("CAPFLOW_OUTBOUND_HOSTS", "upload.example.com, media.example.com")
	t.Setenv("CAPFLOW_ALLOWED_ORIGINS", "https://app.example.com")

	cfg, err := NewLoader("", "").Load()
	require.NoError(t, err)
	require.True(t, cfg.Capture.Outbound.Enabled)
	require.Equal(t, []string{"upload.example.com", "media.example.com"}, cfg.Capture.Outbound.Hosts)
	require.Equal(t, []int{443}, cfg.Capture.Outbound.Ports)
	require.Equal(t, []string{"https://app.example.com"}, cfg.API.AllowedOrigins)
}

func TestLoad_OutboundWithoutTargetsFails(t *testing.T) {
	path := writeConfig(t, "capture:\n  outbound:\n    enabled: true\n    ports: [443]\n    schemes: [https]\n")
	_, err := NewLoader(path, "").Load()
	require.ErrorContains(t, err, "capture.outbound")
}

func TestLoad_RedisBus(t *testing.T) {
	t.Setenv("CAPFLOW_BUS_BACKEND", "redis")
	t.Setenv("CAPFLOW_REDIS_ADDR", "redis.internal:6379")
	t.Setenv("CAPFLOW_REDIS_DB", "2")

	cfg, err := NewLoader("", "").Load()
	require.NoError(t, err)
	require.Equal(t, BusConfig{Backend: "redis", RedisAddr: "redis.internal:6379", RedisDB: 2}, cfg.Bus)

	t.Setenv("CAPFLOW_BUS_BACKEND", "kafka")
	_, err = NewLoader("", "").Load()
	require.ErrorContains(t, err, "bus.backend")
}
