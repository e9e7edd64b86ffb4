// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package manager

import (
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/capflow/internal/capture/model"
	"github.com/ManuGH/capflow/internal/capture/policy"
)

const (
	DefaultSufficientDuration      = time.Second
	DefaultFaceFallbackTimeout     = 4 * time.Second
	DefaultDocumentFallbackTimeout = 5 * time.Second
	DefaultCountdownTicks          = 3
	DefaultCountdownInterval       = time.Second
	DefaultSideTransitionDelay     = 1500 * time.Millisecond
	DefaultCompletionDelay         = 500 * time.Millisecond
	DefaultCameraPollInterval      = 250 * time.Millisecond
	DefaultCameraPollAttempts      = 20
	DefaultTeardownTimeout         = 5 * time.Second
)

// FlowConfig is the explicit per-session configuration of a capture flow.
type FlowConfig struct {
	Autocapture bool
	// RecordVideo captures a timed video take instead of a photo.
	RecordVideo bool
	// Evaluate runs the pre-upload quality check for the first attempts of a side.
	Evaluate  bool
	Metadata  model.EvaluationMetadata
	UploadURL string
	Sides     []model.Side
	Retry     policy.Retry

	SufficientDuration    time.Duration
	ManualFallbackTimeout time.Duration
	CountdownTicks        int
	CountdownInterval     time.Duration
	SideTransitionDelay   time.Duration
	CompletionDelay       time.Duration
	CameraPollInterval    time.Duration
	CameraPollAttempts    int
	TeardownTimeout       time.Duration
}

// DefaultFlowConfig returns the production configuration for flow.
// UploadURL is left empty; callers must provide it.
func DefaultFlowConfig(flow model.Flow) FlowConfig {
	cfg := FlowConfig{
		Autocapture: true,
		Retry:       policy.DefaultRetry(),
	}
	switch flow {
	case model.FlowFace:
		cfg.RecordVideo = true
		cfg.Sides = []model.Side{model.SideNone}
	case model.FlowDocument:
		cfg.Evaluate = true
		cfg.Sides = []model.Side{model.SideFront, model.SideBack}
	}
	return cfg.withDefaults(flow)
}

func (c FlowConfig) withDefaults(flow model.Flow) FlowConfig {
	if c.SufficientDuration <= 0 {
		c.SufficientDuration = DefaultSufficientDuration
	}
	if c.ManualFallbackTimeout <= 0 {
		c.ManualFallbackTimeout = DefaultDocumentFallbackTimeout
		if flow == model.FlowFace {
			c.ManualFallbackTimeout = DefaultFaceFallbackTimeout
		}
	}
	if c.CountdownTicks <= 0 {
		c.CountdownTicks = DefaultCountdownTicks
	}
	if c.CountdownInterval <= 0 {
		c.CountdownInterval = DefaultCountdownInterval
	}
	if c.SideTransitionDelay <= 0 {
		c.SideTransitionDelay = DefaultSideTransitionDelay
	}
	if c.CompletionDelay <= 0 {
		c.CompletionDelay = DefaultCompletionDelay
	}
	if c.CameraPollInterval <= 0 {
		c.CameraPollInterval = DefaultCameraPollInterval
	}
	if c.CameraPollAttempts <= 0 {
		c.CameraPollAttempts = DefaultCameraPollAttempts
	}
	if c.TeardownTimeout <= 0 {
		c.TeardownTimeout = DefaultTeardownTimeout
	}
	if len(c.Sides) == 0 {
		if flow == model.FlowFace {
			c.Sides = []model.Side{model.SideNone}
		} else {
			c.Sides = []model.Side{model.SideFront, model.SideBack}
		}
	}
	c.Retry = c.Retry.Normalize()
	return c
}

// Validate checks the side layout against the flow.
func (c FlowConfig) Validate(flow model.Flow) error {
	if !flow.Valid() {
		return fmt.Errorf("unknown flow %q", flow)
	}
	if len(c.Sides) == 0 {
		return errors.New("at least one side is required")
	}
	seen := make(map[model.Side]bool, len(c.Sides))
	for _, s := range c.Sides {
		if seen[s] {
			return fmt.Errorf("duplicate side %q", s)
		}
		seen[s] = true
		switch flow {
		case model.FlowFace:
			if s != model.SideNone {
				return fmt.Errorf("face flow does not support side %q", s)
			}
		case model.FlowDocument:
			if s != model.SideFront && s != model.SideBack {
				return fmt.Errorf("document flow does not support side %q", s)
			}
		}
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.MaxAttempts must be > 0, got %d", c.Retry.MaxAttempts)
	}
	return nil
}
