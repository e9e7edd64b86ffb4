// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "capflow.evaluation"

// RecordEvaluationVerdict counts one evaluation verdict on the global meter
// provider. The provider is looked up per call so tests and late SDK setup
// see every observation.
func RecordEvaluationVerdict(ctx context.Context, status, reason string) {
	meter := otel.GetMeterProvider().Meter(meterName)
	verdicts, err := meter.Int64Counter("capflow_evaluation_verdict_total",
		metric.WithDescription("Evaluation verdicts by status and reason"))
	if err != nil {
		return
	}
	verdicts.Add(ctx, 1, metric.WithAttributes(EvaluationAttributes(status, reason)...))
}
