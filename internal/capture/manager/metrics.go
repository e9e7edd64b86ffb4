package manager

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fsmTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capflow_capture_transitions_total",
			Help: "Capture state machine transitions",
		},
		[]string{"flow", "phase_from", "phase_to"},
	)

	eventsIgnoredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capflow_capture_events_ignored_total",
			Help: "Events rejected by the transition table, by reason.",
		},
		[]string{"event", "reason"},
	)

	detectionBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capflow_detection_batches_total",
			Help: "Detection batches by outcome (verdict or drop reason).",
		},
		[]string{"flow", "outcome"},
	)

	capturesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capflow_captures_total",
			Help: "Capture triggers by flow and trigger source.",
		},
		[]string{"flow", "trigger"},
	)

	manualFallbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capflow_manual_mode_total",
			Help: "Entries into manual capture mode by reason.",
		},
		[]string{"flow", "reason"},
	)

	evaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capflow_evaluations_total",
			Help: "Quality evaluation outcomes.",
		},
		[]string{"flow", "result"},
	)

	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capflow_uploads_total",
			Help: "Capture upload outcomes.",
		},
		[]string{"flow", "result"},
	)

	attemptFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capflow_attempt_failures_total",
			Help: "Capture attempts that ended with a user-visible error, by kind.",
		},
		[]string{"flow", "kind"},
	)

	snapshotsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "capflow_snapshots_superseded_total",
			Help: "Snapshots not rendered because a newer one was already emitted.",
		},
	)
)
