// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment key the loader reads.
const EnvPrefix = "CAPFLOW_"

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader returns a loader for configPath; an empty path means environment only.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the config file path; empty means environment only.
func (l *Loader) Path() string { return l.configPath }

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envInt64(key string, defaultVal int64) int64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt64(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

// Load loads configuration with precedence ENV > File > Defaults, then validates.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnvConfig(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// UnknownEnvKeys lists CAPFLOW_* variables in environ that Load never read.
func (l *Loader) UnknownEnvKeys(environ []string) []string {
	var out []string
	for _, kv := range environ {
		key, _, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		if _, ok := l.ConsumedEnvKeys[key]; !ok {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

// loadFile decodes a YAML file onto cfg with STRICT parsing.
// Unknown fields are a fatal error to prevent misconfiguration.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("strict config parse error: %w: %w", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.LogLevel = l.envString("CAPFLOW_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = l.envString("CAPFLOW_LOG_FORMAT", cfg.LogFormat)

	api := &cfg.API
	api.ListenAddr = l.envString("CAPFLOW_LISTEN", api.ListenAddr)
	api.RateLimit = l.envInt("CAPFLOW_RATE_LIMIT", api.RateLimit)
	api.RateWindow = l.envDuration("CAPFLOW_RATE_WINDOW", api.RateWindow)
	api.MaxSessions = l.envInt("CAPFLOW_MAX_SESSIONS", api.MaxSessions)
	api.MaxMediaBytes = l.envInt64("CAPFLOW_MAX_MEDIA_BYTES", api.MaxMediaBytes)
	api.CommandWait = l.envDuration("CAPFLOW_COMMAND_WAIT", api.CommandWait)
	api.ShutdownTimeout = l.envDuration("CAPFLOW_SHUTDOWN_TIMEOUT", api.ShutdownTimeout)
	api.APIToken = l.envString("CAPFLOW_API_TOKEN", api.APIToken)
	api.AuthAnonymous = l.envBool("CAPFLOW_AUTH_ANONYMOUS", api.AuthAnonymous)
	if origins := l.envString("CAPFLOW_ALLOWED_ORIGINS", ""); origins != "" {
		api.AllowedOrigins = splitList(origins)
	}

	c := &cfg.Capture
	c.UploadURL = l.envString("CAPFLOW_UPLOAD_URL", c.UploadURL)
	c.Country = l.envString("CAPFLOW_COUNTRY", c.Country)
	c.DocumentType = l.envString("CAPFLOW_DOCUMENT_TYPE", c.DocumentType)
	c.CameraPollInterval = l.envDuration("CAPFLOW_CAMERA_POLL_INTERVAL", c.CameraPollInterval)
	c.CameraPollAttempts = l.envInt("CAPFLOW_CAMERA_POLL_ATTEMPTS", c.CameraPollAttempts)
	c.Outbound.Enabled = l.envBool("CAPFLOW_OUTBOUND_ENABLED", c.Outbound.Enabled)
	if hosts := l.envString("CAPFLOW_OUTBOUND_HOSTS", ""); hosts != "" {
		c.Outbound.Hosts = splitList(hosts)
	}
	l.mergeFlowEnv("FACE", &c.Face)
	l.mergeFlowEnv("DOCUMENT", &c.Document)

	e := &cfg.Evaluation
	e.BaseURL = l.envString("CAPFLOW_EVALUATION_URL", e.BaseURL)
	e.APIKey = l.envString("CAPFLOW_EVALUATION_API_KEY", e.APIKey)
	e.Timeout = l.envDuration("CAPFLOW_EVALUATION_TIMEOUT", e.Timeout)

	b := &cfg.Bus
	b.Backend = l.envString("CAPFLOW_BUS_BACKEND", b.Backend)
	b.RedisAddr = l.envString("CAPFLOW_REDIS_ADDR", b.RedisAddr)
	b.RedisPassword = l.envString("CAPFLOW_REDIS_PASSWORD", b.RedisPassword)
	b.RedisDB = l.envInt("CAPFLOW_REDIS_DB", b.RedisDB)

	t := &cfg.Telemetry
	t.Enabled = l.envBool("CAPFLOW_TELEMETRY_ENABLED", t.Enabled)
	t.Environment = l.envString("CAPFLOW_ENVIRONMENT", t.Environment)
	t.Exporter = l.envString("CAPFLOW_OTEL_EXPORTER", t.Exporter)
	t.Endpoint = l.envString("CAPFLOW_OTEL_ENDPOINT", t.Endpoint)
	t.SamplingRate = l.envFloat("CAPFLOW_OTEL_SAMPLING_RATE", t.SamplingRate)
}

func (l *Loader) mergeFlowEnv(flow string, fs *FlowSettings) {
	key := func(name string) string { return EnvPrefix + flow + "_" + name }
	fs.Autocapture = l.envBool(key("AUTOCAPTURE"), fs.Autocapture)
	fs.Evaluate = l.envBool(key("EVALUATE"), fs.Evaluate)
	fs.SufficientDuration = l.envDuration(key("SUFFICIENT_DURATION"), fs.SufficientDuration)
	fs.ManualFallbackTimeout = l.envDuration(key("FALLBACK_TIMEOUT"), fs.ManualFallbackTimeout)
	fs.MaxAttempts = l.envInt(key("MAX_ATTEMPTS"), fs.MaxAttempts)
	fs.MaxTransportRetries = l.envInt(key("MAX_TRANSPORT_RETRIES"), fs.MaxTransportRetries)
}

func splitList(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
