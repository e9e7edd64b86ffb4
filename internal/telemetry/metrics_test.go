// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestRecordEvaluationVerdict(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(mp)
	t.Cleanup(func() {
		otel.SetMeterProvider(prev)
		_ = mp.Shutdown(context.Background())
	})

	ctx := context.Background()
	RecordEvaluationVerdict(ctx, "ACCEPTED", "")
	RecordEvaluationVerdict(ctx, "REJECTED", "BLURRY")
	RecordEvaluationVerdict(ctx, "REJECTED", "BLURRY")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	require.Equal(t, meterName, rm.ScopeMetrics[0].Scope.Name)

	m := rm.ScopeMetrics[0].Metrics[0]
	require.Equal(t, "capflow_evaluation_verdict_total", m.Name)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)

	counts := map[string]int64{}
	for _, dp := range sum.DataPoints {
		status, _ := dp.Attributes.Value(EvaluationStatusKey)
		counts[status.AsString()] += dp.Value
	}
	require.Equal(t, map[string]int64{"ACCEPTED": 1, "REJECTED": 2}, counts)
}
