// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config loads and hot-reloads the capflow daemon configuration.
package config

import (
	"time"

	platformnet "github.com/ManuGH/capflow/internal/platform/net"
)

// AppConfig is the complete, validated runtime configuration.
type AppConfig struct {
	Version   string `yaml:"-"`
	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`

	API        APIConfig        `yaml:"api"`
	Capture    CaptureConfig    `yaml:"capture"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Bus        BusConfig        `yaml:"bus"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// APIConfig configures the session control HTTP surface.
type APIConfig struct {
	ListenAddr        string        `yaml:"listenAddr"`
	RateLimit         int           `yaml:"rateLimit"`
	RateWindow        time.Duration `yaml:"rateWindow"`
	MaxSessions       int           `yaml:"maxSessions"`
	MaxMediaBytes     int64         `yaml:"maxMediaBytes"`
	CommandWait       time.Duration `yaml:"commandWait"`
	ReadHeaderTimeout time.Duration `yaml:"readHeaderTimeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdownTimeout"`
	// StreamPublishTimeout bounds how long a snapshot waits for a slow viewer.
	StreamPublishTimeout time.Duration `yaml:"streamPublishTimeout"`

	// APIToken guards every session route. Without a token the API refuses
	// all requests unless AuthAnonymous is set.
	APIToken       string   `yaml:"apiToken"`
	AuthAnonymous  bool     `yaml:"authAnonymous"`
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
}

// CaptureConfig holds the session-independent capture settings plus the
// per-flow timing. New sessions read it when they are created.
type CaptureConfig struct {
	UploadURL    string `yaml:"uploadUrl"`
	Country      string `yaml:"country"`
	DocumentType string `yaml:"documentType"`

	CameraPollInterval time.Duration `yaml:"cameraPollInterval"`
	CameraPollAttempts int           `yaml:"cameraPollAttempts"`
	TeardownTimeout    time.Duration `yaml:"teardownTimeout"`

	Face     FlowSettings `yaml:"face"`
	Document FlowSettings `yaml:"document"`

	// Outbound decides whether a session may carry its own upload URL.
	Outbound platformnet.OutboundPolicy `yaml:"outbound"`
}

// FlowSettings tunes one validation type.
type FlowSettings struct {
	Autocapture           bool          `yaml:"autocapture"`
	Evaluate              bool          `yaml:"evaluate"`
	SufficientDuration    time.Duration `yaml:"sufficientDuration"`
	ManualFallbackTimeout time.Duration `yaml:"manualFallbackTimeout"`
	CountdownTicks        int           `yaml:"countdownTicks"`
	CountdownInterval     time.Duration `yaml:"countdownInterval"`
	SideTransitionDelay   time.Duration `yaml:"sideTransitionDelay"`
	CompletionDelay       time.Duration `yaml:"completionDelay"`
	MaxAttempts           int           `yaml:"maxAttempts"`
	MaxTransportRetries   int           `yaml:"maxTransportRetries"`
}

// EvaluationConfig points at the quality evaluation service. An empty
// BaseURL disables evaluation.
type EvaluationConfig struct {
	BaseURL string        `yaml:"baseUrl"`
	APIKey  string        `yaml:"apiKey"`
	Timeout time.Duration `yaml:"timeout"`
}

// BusConfig selects the snapshot transport. The redis backend lets any
// replica serve a session's snapshot stream.
type BusConfig struct {
	Backend       string `yaml:"backend"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDb"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ServiceName  string  `yaml:"serviceName"`
	Environment  string  `yaml:"environment"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
}
