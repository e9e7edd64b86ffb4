// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"strings"
	"time"

	"github.com/ManuGH/capflow/internal/validate"
)

var httpSchemes = []string{"http", "https"}

// Validate checks every field and reports all violations at once.
func Validate(cfg AppConfig) error {
	v := validate.New()

	if _, err := validate.ParseLogLevel(cfg.LogLevel); err != nil {
		v.AddError("logLevel", validate.ErrInvalidLogLevel.Message, cfg.LogLevel)
	}
	v.OneOf("logFormat", cfg.LogFormat, []string{"json", "console"})

	v.ListenAddr("api.listenAddr", cfg.API.ListenAddr)
	v.Positive("api.rateLimit", cfg.API.RateLimit)
	v.DurationRange("api.rateWindow", cfg.API.RateWindow, time.Second, time.Hour)
	v.Range("api.maxSessions", cfg.API.MaxSessions, 1, 10000)
	if cfg.API.MaxMediaBytes <= 0 {
		v.AddError("api.maxMediaBytes", "value must be positive", cfg.API.MaxMediaBytes)
	}
	v.DurationRange("api.commandWait", cfg.API.CommandWait, 100*time.Millisecond, 2*time.Minute)
	v.DurationRange("api.shutdownTimeout", cfg.API.ShutdownTimeout, time.Second, 5*time.Minute)
	v.DurationRange("api.streamPublishTimeout", cfg.API.StreamPublishTimeout, time.Millisecond, 10*time.Second)

	validateCapture(v, cfg.Capture)

	// Evaluation is optional.
	if strings.TrimSpace(cfg.Evaluation.BaseURL) != "" {
		v.URL("evaluation.baseUrl", cfg.Evaluation.BaseURL, httpSchemes)
		v.DurationRange("evaluation.timeout", cfg.Evaluation.Timeout, 100*time.Millisecond, 5*time.Minute)
	}

	v.OneOf("bus.backend", cfg.Bus.Backend, []string{"memory", "redis"})
	if cfg.Bus.Backend == "redis" {
		v.NotEmpty("bus.redisAddr", cfg.Bus.RedisAddr)
		v.Range("bus.redisDb", cfg.Bus.RedisDB, 0, 15)
	}

	if cfg.Telemetry.Enabled {
		v.NotEmpty("telemetry.serviceName", cfg.Telemetry.ServiceName)
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		v.FloatRange("telemetry.samplingRate", cfg.Telemetry.SamplingRate, 0, 1)
	}

	return v.Err()
}

func validateCapture(v *validate.Validator, c CaptureConfig) {
	// An empty upload URL is allowed; sessions then fail with MISSING_UPLOAD_URL.
	if strings.TrimSpace(c.UploadURL) != "" {
		v.URL("capture.uploadUrl", c.UploadURL, httpSchemes)
	}
	v.DurationRange("capture.cameraPollInterval", c.CameraPollInterval, 10*time.Millisecond, 10*time.Second)
	v.Range("capture.cameraPollAttempts", c.CameraPollAttempts, 1, 1000)
	v.DurationRange("capture.teardownTimeout", c.TeardownTimeout, 100*time.Millisecond, time.Minute)
	if err := c.Outbound.Validate(); err != nil {
		v.AddError("capture.outbound", err.Error(), c.Outbound.Hosts)
	}
	validateFlow(v, "capture.face", c.Face)
	validateFlow(v, "capture.document", c.Document)
}

func validateFlow(v *validate.Validator, prefix string, fs FlowSettings) {
	v.DurationRange(prefix+".sufficientDuration", fs.SufficientDuration, 100*time.Millisecond, time.Minute)
	v.DurationRange(prefix+".manualFallbackTimeout", fs.ManualFallbackTimeout, time.Second, 10*time.Minute)
	v.Range(prefix+".countdownTicks", fs.CountdownTicks, 1, 30)
	v.DurationRange(prefix+".countdownInterval", fs.CountdownInterval, 100*time.Millisecond, 10*time.Second)
	v.DurationRange(prefix+".sideTransitionDelay", fs.SideTransitionDelay, 0, time.Minute)
	v.DurationRange(prefix+".completionDelay", fs.CompletionDelay, 0, time.Minute)
	v.Range(prefix+".maxAttempts", fs.MaxAttempts, 1, 20)
	v.Range(prefix+".maxTransportRetries", fs.MaxTransportRetries, 0, 10)
}
