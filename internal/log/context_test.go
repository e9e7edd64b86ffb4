// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestContextWithSessionID(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		id   string
		want string
	}{
		{name: "nil context", ctx: nil, id: "sess-1", want: "sess-1"},
		{name: "background context", ctx: context.Background(), id: "sess-2", want: "sess-2"},
		{name: "empty id", ctx: context.Background(), id: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := ContextWithSessionID(tt.ctx, tt.id)
			assert.Equal(t, tt.want, SessionIDFromContext(ctx))
		})
	}
}

func TestIDFromContextWrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), requestIDKey, 123)
	assert.Empty(t, RequestIDFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(nil))
	assert.Empty(t, SessionIDFromContext(nil))
}

func TestWithContextAddsCorrelationFields(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithSessionID(ctx, "sess-1")
	ctx = trace.ContextWithSpanContext(ctx, sc)

	l := WithContext(ctx, base)
	l.Info().Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-1", entry[FieldRequestID])
	assert.Equal(t, "sess-1", entry[FieldSessionID])
	assert.Equal(t, traceID.String(), entry[FieldTraceID])
	assert.Equal(t, spanID.String(), entry[FieldSpanID])
}

func TestWithContextWithoutFieldsReturnsSameLogger(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	l := WithContext(context.Background(), base)
	l.Info().Msg("plain")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.NotContains(t, entry, FieldSessionID)
}

func TestConfigureWritesServiceAndComponent(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "capflow-test", Version: "v0"})
	defer Configure(Config{})

	l := WithComponent("orchestrator")
	l.Debug().Msg("configured")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "capflow-test", entry["service"])
	assert.Equal(t, "v0", entry["version"])
	assert.Equal(t, "orchestrator", entry[FieldComponent])
}

func TestDerive(t *testing.T) {
	l := Derive(nil)
	assert.LessOrEqual(t, l.GetLevel(), zerolog.PanicLevel)

	l = Derive(func(ctx *zerolog.Context) {
		ctx.Str("custom_field", "value")
	})
	assert.LessOrEqual(t, l.GetLevel(), zerolog.PanicLevel)
}
