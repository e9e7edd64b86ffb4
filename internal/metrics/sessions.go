// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "capflow_sessions_active",
		Help: "Capture sessions currently hosted by the daemon",
	}, []string{"flow"})

	sessionsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "capflow_sessions_created_total",
		Help: "Capture sessions created, by flow",
	}, []string{"flow"})

	sessionsEndedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "capflow_sessions_ended_total",
		Help: "Capture sessions removed from the daemon, by flow and final phase",
	}, []string{"flow", "phase"})

	streamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "capflow_snapshot_stream_clients",
		Help: "Connected snapshot stream clients",
	})

	deviceCommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "capflow_device_commands_total",
		Help: "Commands queued for remote capture devices, by kind and outcome",
	}, []string{"kind", "outcome"}) // outcome=queued|fulfilled|abandoned

	configReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "capflow_config_reloads_total",
		Help: "Configuration reload attempts by result",
	}, []string{"result"}) // result=success|failure
)

// RecordSessionCreated counts a new hosted session.
func RecordSessionCreated(flow string) {
	sessionsCreatedTotal.WithLabelValues(flow).Inc()
	sessionsActive.WithLabelValues(flow).Inc()
}

// RecordSessionEnded counts a removed session with the phase it ended in.
func RecordSessionEnded(flow, phase string) {
	sessionsEndedTotal.WithLabelValues(flow, phase).Inc()
	sessionsActive.WithLabelValues(flow).Dec()
}

// StreamClientConnected tracks a snapshot stream client; call the returned
// func on disconnect.
func StreamClientConnected() func() {
	streamClients.Inc()
	return streamClients.Dec
}

// RecordDeviceCommand counts a remote device command transition.
func RecordDeviceCommand(kind, outcome string) {
	deviceCommandsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordConfigReload counts a configuration reload attempt.
func RecordConfigReload(ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	configReloadsTotal.WithLabelValues(result).Inc()
}
