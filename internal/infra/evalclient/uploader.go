// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package evalclient

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/capflow/internal/capture/ports"
	xglog "github.com/ManuGH/capflow/internal/log"
	"github.com/ManuGH/capflow/internal/metrics"
	"github.com/ManuGH/capflow/internal/platform/httpx"
	platformnet "github.com/ManuGH/capflow/internal/platform/net"
	"github.com/ManuGH/capflow/internal/telemetry"
)

const (
	sessionHeader = "X-Capture-Session"
	sideHeader    = "X-Capture-Side"
)

// Uploader implements ports.Uploader by POSTing the raw capture bytes to
// the session's upload URL.
type Uploader struct {
	http    *http.Client
	apiKey  string
	breaker *CircuitBreaker
	tracer  trace.Tracer
	logger  zerolog.Logger
}

var _ ports.Uploader = (*Uploader)(nil)

// NewUploader returns an uploader. BaseURL is ignored; every request
// carries its own target.
func NewUploader(cfg Config) *Uploader {
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
	return &Uploader{
		http:    client,
		apiKey:  cfg.APIKey,
		breaker: NewCircuitBreaker("upload", cfg.FailureThreshold, cfg.ResetTimeout, cfg.Clock),
		tracer:  telemetry.Tracer(tracerName),
		logger:  xglog.WithComponent("evalclient"),
	}
}

// Breaker exposes the circuit state for health reporting.
func (u *Uploader) Breaker() *CircuitBreaker { return u.breaker }

// Upload sends req.Data. Any non-2xx response is an error.
func (u *Uploader) Upload(ctx context.Context, req ports.UploadRequest) error {
	ctx, span := u.tracer.Start(ctx, "capture.upload",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(telemetry.CaptureAttributes(req.SessionID, string(req.Side), req.ContentType, len(req.Data))...),
	)
	defer span.End()
	start := time.Now()

	err := u.breaker.Execute(func() error { return u.do(ctx, req) })
	metrics.ObserveUpstreamRequest("upload", kind(err), time.Since(start).Seconds())

	logger := xglog.WithContext(ctx, u.logger).With().
		Str(xglog.FieldSide, string(req.Side)).
		Str("target", platformnet.SanitizeURL(req.URL)).
		Logger()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, kind(err))
		span.SetAttributes(telemetry.ErrorAttributes(kind(err))...)
		logger.Warn().Err(err).Str(xglog.FieldEvent, "upload.failed").Msg("capture upload failed")
		return err
	}
	logger.Info().
		Str(xglog.FieldEvent, "upload.completed").
		Int("bytes", len(req.Data)).
		Msg("capture uploaded")
	return nil
}

func (u *Uploader) do(ctx context.Context, req ports.UploadRequest) error {
	const op = "upload"
	target, ok := platformnet.ParseDirectHTTPURL(req.URL)
	if !ok {
		return &RequestError{Sentinel: ErrInvalidURL, Operation: op, Body: platformnet.SanitizeURL(req.URL)}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader(req.Data))
	if err != nil {
		return &RequestError{Sentinel: ErrInvalidURL, Operation: op, Err: err}
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set(sessionHeader, req.SessionID)
	if req.Side != "" {
		httpReq.Header.Set(sideHeader, string(req.Side))
	}
	if u.apiKey != "" {
		httpReq.Header.Set(apiKeyHeader, u.apiKey)
	}

	res, err := u.http.Do(httpReq)
	if err != nil {
		return transportError(op, err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return statusError(op, res.StatusCode, readSnippet(res.Body))
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, maxErrorBody))
	return nil
}
