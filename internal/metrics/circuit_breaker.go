// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "capflow_circuit_breaker_state",
		Help: "Circuit breaker state by component (closed=1, half-open=1, open=1; others 0)",
	}, []string{"component", "state"})

	circuitBreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "capflow_circuit_breaker_trips_total",
		Help: "Total number of circuit breaker trips (transitions to open state)",
	}, []string{"component", "reason"})

	upstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "capflow_upstream_requests_total",
		Help: "Requests to the evaluation and upload services by outcome",
	}, []string{"operation", "outcome"})

	upstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "capflow_upstream_request_duration_seconds",
		Help:    "Latency of requests to the evaluation and upload services",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"operation"})
)

var circuitStates = []string{"closed", "half-open", "open"}

// SetCircuitBreakerState records the active circuit breaker state for a component.
func SetCircuitBreakerState(component, state string) {
	for _, s := range circuitStates {
		value := 0.0
		if s == state {
			value = 1.0
		}
		circuitBreakerState.WithLabelValues(component, s).Set(value)
	}
}

// RecordCircuitBreakerTrip increments the trip counter when circuit breaker opens.
func RecordCircuitBreakerTrip(component, reason string) {
	circuitBreakerTrips.WithLabelValues(component, reason).Inc()
}

// ObserveUpstreamRequest records one evaluation or upload request.
func ObserveUpstreamRequest(operation, outcome string, seconds float64) {
	upstreamRequests.WithLabelValues(operation, outcome).Inc()
	upstreamDuration.WithLabelValues(operation).Observe(seconds)
}
