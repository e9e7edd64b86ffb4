// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package evalclient talks to the remote quality evaluation service and
// uploads accepted captures. Both types satisfy the capture ports and never
// retry on their own; retry policy belongs to the orchestrator.
package evalclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/capflow/internal/capture/clock"
	"github.com/ManuGH/capflow/internal/capture/model"
	"github.com/ManuGH/capflow/internal/capture/ports"
	xglog "github.com/ManuGH/capflow/internal/log"
	"github.com/ManuGH/capflow/internal/metrics"
	"github.com/ManuGH/capflow/internal/platform/httpx"
	"github.com/ManuGH/capflow/internal/telemetry"
)

const (
	evaluatePath       = "/v1/evaluations"
	apiKeyHeader       = "X-API-Key"
	maxErrorBody       = 4 << 10
	maxResponseBody    = 1 << 20
	defaultTimeout     = 15 * time.Second
	defaultResetWindow = 30 * time.Second
	tracerName         = "github.com/ManuGH/capflow/internal/infra/evalclient"
)

// Config configures an Evaluator.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	// FailureThreshold consecutive upstream failures open the circuit.
	FailureThreshold int
	ResetTimeout     time.Duration
	Clock            clock.Clock

	// HTTPClient overrides the traced default client.
	HTTPClient *http.Client
}

// Evaluator implements ports.Evaluator over HTTP.
type Evaluator struct {
	endpoint string
	apiKey   string
	http     *http.Client
	breaker  *CircuitBreaker
	tracer   trace.Tracer
	logger   zerolog.Logger
}

var _ ports.Evaluator = (*Evaluator)(nil)

type evaluationRequest struct {
	SessionID    string `json:"sessionId"`
	Side         string `json:"side,omitempty"`
	Country      string `json:"country,omitempty"`
	DocumentType string `json:"documentType,omitempty"`
	Image        []byte `json:"image"`
}

type evaluationResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// NewEvaluator validates cfg and returns an evaluator for cfg.BaseURL.
func NewEvaluator(cfg Config) (*Evaluator, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("%w: evaluation base url is empty", ErrInvalidURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = defaultResetWindow
	}
	client := cfg.HTTPClient
	if client == nil {
		client = httpx.NewTracedClient(cfg.Timeout)
	}
	return &Evaluator{
		endpoint: base + evaluatePath,
		apiKey:   cfg.APIKey,
		http:     client,
		breaker:  NewCircuitBreaker("evaluation", cfg.FailureThreshold, cfg.ResetTimeout, cfg.Clock),
		tracer:   telemetry.Tracer(tracerName),
		logger:   xglog.WithComponent("evalclient"),
	}, nil
}

// Breaker exposes the circuit state for health reporting.
func (e *Evaluator) Breaker() *CircuitBreaker { return e.breaker }

// Evaluate submits the photo and maps the verdict. Any error is a transport
// error from the caller's point of view; a REJECTED verdict is not an error.
func (e *Evaluator) Evaluate(ctx context.Context, req ports.EvaluationRequest) (ports.EvaluationResult, error) {
	ctx, span := e.tracer.Start(ctx, "evaluation.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(telemetry.CaptureAttributes(req.SessionID, string(req.Side), ports.ContentTypeJPEG, len(req.Photo))...),
	)
	defer span.End()
	start := time.Now()

	var out ports.EvaluationResult
	err := e.breaker.Execute(func() error {
		var err error
		out, err = e.do(ctx, req)
		return err
	})
	metrics.ObserveUpstreamRequest("evaluate", kind(err), time.Since(start).Seconds())

	logger := xglog.WithContext(ctx, e.logger).With().Str(xglog.FieldSide, string(req.Side)).Logger()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, kind(err))
		span.SetAttributes(telemetry.ErrorAttributes(kind(err))...)
		logger.Warn().Err(err).Str(xglog.FieldEvent, "evaluation.failed").Msg("evaluation request failed")
		return ports.EvaluationResult{}, err
	}
	span.SetAttributes(telemetry.EvaluationAttributes(string(out.Status), out.Reason)...)
	telemetry.RecordEvaluationVerdict(ctx, string(out.Status), out.Reason)
	logger.Debug().
		Str(xglog.FieldEvent, "evaluation.completed").
		Str("status", string(out.Status)).
		Str(xglog.FieldReason, out.Reason).
		Msg("evaluation completed")
	return out, nil
}

func (e *Evaluator) do(ctx context.Context, req ports.EvaluationRequest) (ports.EvaluationResult, error) {
	const op = "evaluate"
	body, err := json.Marshal(evaluationRequest{
		SessionID:    req.SessionID,
		Side:         string(req.Side),
		Country:      req.Metadata.Country,
		DocumentType: req.Metadata.DocumentType,
		Image:        req.Photo,
	})
	if err != nil {
		return ports.EvaluationResult{}, fmt.Errorf("encode evaluation request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return ports.EvaluationResult{}, &RequestError{Sentinel: ErrInvalidURL, Operation: op, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if e.apiKey != "" {
		httpReq.Header.Set(apiKeyHeader, e.apiKey)
	}
	if rid := xglog.RequestIDFromContext(ctx); rid != "" {
		httpReq.Header.Set("X-Request-ID", rid)
	}

	res, err := e.http.Do(httpReq)
	if err != nil {
		return ports.EvaluationResult{}, transportError(op, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return ports.EvaluationResult{}, statusError(op, res.StatusCode, readSnippet(res.Body))
	}

	var payload evaluationResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, maxResponseBody)).Decode(&payload); err != nil {
		return ports.EvaluationResult{}, &RequestError{Sentinel: ErrBadResponse, Operation: op, Status: res.StatusCode, Err: err}
	}
	status := model.EvaluationStatus(strings.ToUpper(strings.TrimSpace(payload.Status)))
	switch status {
	case model.EvaluationAccepted, model.EvaluationRejected:
	default:
		return ports.EvaluationResult{}, &RequestError{
			Sentinel:  ErrBadResponse,
			Operation: op,
			Status:    res.StatusCode,
			Body:      fmt.Sprintf("unknown status %q", payload.Status),
		}
	}
	return ports.EvaluationResult{Status: status, Reason: strings.TrimSpace(payload.Reason)}, nil
}

func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return strings.TrimSpace(string(b))
}
