// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/ManuGH/capflow/internal/capture/manager"
	"github.com/ManuGH/capflow/internal/capture/model"
	platformnet "github.com/ManuGH/capflow/internal/platform/net"
)

// Defaults returns the configuration used when neither file nor environment
// set a value.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel:  "info",
		LogFormat: "json",
		API: APIConfig{
			ListenAddr:           ":8088",
			RateLimit:            600,
			RateWindow:           time.Minute,
			MaxSessions:          64,
			MaxMediaBytes:        32 << 20,
			CommandWait:          25 * time.Second,
			ReadHeaderTimeout:    5 * time.Second,
			ShutdownTimeout:      10 * time.Second,
			StreamPublishTimeout: 100 * time.Millisecond,
		},
		Capture: CaptureConfig{
			CameraPollInterval: manager.DefaultCameraPollInterval,
			CameraPollAttempts: manager.DefaultCameraPollAttempts,
			TeardownTimeout:    manager.DefaultTeardownTimeout,
			Face:               flowDefaults(model.FlowFace),
			Document:           flowDefaults(model.FlowDocument),
			Outbound: platformnet.OutboundPolicy{
				Ports:   []int{443},
				Schemes: []string{"https"},
			},
		},
		Evaluation: EvaluationConfig{
			Timeout: 15 * time.Second,
		},
		Bus: BusConfig{
			Backend:   "memory",
			RedisAddr: "localhost:6379",
		},
		Telemetry: TelemetryConfig{
			ServiceName:  "capflow",
			Environment:  "development",
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}

func flowDefaults(flow model.Flow) FlowSettings {
	fc := manager.DefaultFlowConfig(flow)
	return FlowSettings{
		Autocapture:           fc.Autocapture,
		Evaluate:              fc.Evaluate,
		SufficientDuration:    fc.SufficientDuration,
		ManualFallbackTimeout: fc.ManualFallbackTimeout,
		CountdownTicks:        fc.CountdownTicks,
		CountdownInterval:     fc.CountdownInterval,
		SideTransitionDelay:   fc.SideTransitionDelay,
		CompletionDelay:       fc.CompletionDelay,
		MaxAttempts:           fc.Retry.MaxAttempts,
		MaxTransportRetries:   fc.Retry.MaxTransportRetries,
	}
}

// Flow returns the settings of flow.
func (c CaptureConfig) Flow(flow model.Flow) FlowSettings {
	if flow == model.FlowFace {
		return c.Face
	}
	return c.Document
}

// FlowConfig builds the orchestrator configuration for a new session.
func (c CaptureConfig) FlowConfig(flow model.Flow) manager.FlowConfig {
	fs := c.Flow(flow)
	fc := manager.DefaultFlowConfig(flow)
	fc.Autocapture = fs.Autocapture
	fc.Evaluate = fs.Evaluate
	fc.UploadURL = c.UploadURL
	fc.Metadata = model.EvaluationMetadata{
		Country:      normalizeMetadata(c.Country),
		DocumentType: normalizeMetadata(c.DocumentType),
	}
	fc.Retry.MaxAttempts = fs.MaxAttempts
	fc.Retry.MaxTransportRetries = fs.MaxTransportRetries
	fc.SufficientDuration = fs.SufficientDuration
	fc.ManualFallbackTimeout = fs.ManualFallbackTimeout
	fc.CountdownTicks = fs.CountdownTicks
	fc.CountdownInterval = fs.CountdownInterval
	fc.SideTransitionDelay = fs.SideTransitionDelay
	fc.CompletionDelay = fs.CompletionDelay
	fc.CameraPollInterval = c.CameraPollInterval
	fc.CameraPollAttempts = c.CameraPollAttempts
	fc.TeardownTimeout = c.TeardownTimeout
	return fc
}

// normalizeMetadata trims and NFC-normalizes operator supplied evaluation
// metadata so equivalent spellings reach the evaluator byte-identical.
func normalizeMetadata(v string) string {
	return norm.NFC.String(strings.TrimSpace(v))
}
