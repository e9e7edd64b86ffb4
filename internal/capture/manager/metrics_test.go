// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package manager

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/capflow/internal/capture/manager/testkit"
	"github.com/ManuGH/capflow/internal/capture/model"
)

func TestMetrics_RejectionAndFallback(t *testing.T) {
	evalLabels := map[string]string{"flow": "document", "result": "rejected"}
	manualLabels := map[string]string{"flow": "document", "reason": string(model.ManualTimeout)}
	transLabels := map[string]string{"flow": "document", "phase_from": "UPLOADING", "phase_to": "READY"}

	evaluationsTotal.WithLabelValues("document", "rejected")
	manualFallbackTotal.WithLabelValues("document", string(model.ManualTimeout))
	fsmTransitions.WithLabelValues("document", "UPLOADING", "READY")

	beforeEval := getCounterValue(t, "capflow_evaluations_total", evalLabels)
	beforeManual := getCounterValue(t, "capflow_manual_mode_total", manualLabels)
	beforeTrans := getCounterValue(t, "capflow_capture_transitions_total", transLabels)

	r := newRig(t, model.FlowDocument)
	r.evaluator.Script(testkit.Reject("BLURRY_IMAGE"))
	r.arm()
	r.clk.Advance(r.cfg.ManualFallbackTimeout)
	require.Equal(t, model.PhaseManual, r.phase())
	r.orch.ManualCaptureRequested()
	require.Equal(t, model.PhaseReady, r.phase())

	require.Equal(t, beforeEval+1, getCounterValue(t, "capflow_evaluations_total", evalLabels))
	require.Equal(t, beforeManual+1, getCounterValue(t, "capflow_manual_mode_total", manualLabels))
	require.Equal(t, beforeTrans+1, getCounterValue(t, "capflow_capture_transitions_total", transLabels))
}

func TestMetrics_UploadFailureCountsAttempt(t *testing.T) {
	uploadLabels := map[string]string{"flow": "face", "result": "failed"}
	failLabels := map[string]string{"flow": "face", "kind": string(model.ErrorUpload)}
	captureLabels := map[string]string{"flow": "face", "trigger": "manual"}

	uploadsTotal.WithLabelValues("face", "failed")
	attemptFailuresTotal.WithLabelValues("face", string(model.ErrorUpload))
	capturesTotal.WithLabelValues("face", "manual")

	beforeUpload := getCounterValue(t, "capflow_uploads_total", uploadLabels)
	beforeFail := getCounterValue(t, "capflow_attempt_failures_total", failLabels)
	beforeCapture := getCounterValue(t, "capflow_captures_total", captureLabels)

	r := newRig(t, model.FlowFace)
	r.uploader.Fail(errors.New("upload: 503"))
	r.arm()
	r.orch.ManualCaptureRequested()
	r.clk.Advance(r.cfg.CountdownInterval * 3)
	require.Equal(t, model.ErrorUpload, r.orch.Snapshot().Error)

	require.Equal(t, beforeUpload+1, getCounterValue(t, "capflow_uploads_total", uploadLabels))
	require.Equal(t, beforeFail+1, getCounterValue(t, "capflow_attempt_failures_total", failLabels))
	require.Equal(t, beforeCapture+1, getCounterValue(t, "capflow_captures_total", captureLabels))
}

func TestMetrics_IgnoredEventsByReason(t *testing.T) {
	labels := map[string]string{"event": "capture_triggered", "reason": "requires_load"}
	eventsIgnoredTotal.WithLabelValues("capture_triggered", "requires_load")
	before := getCounterValue(t, "capflow_capture_events_ignored_total", labels)

	r := newRig(t, model.FlowDocument)
	r.orch.ManualCaptureRequested()

	require.Equal(t, before+1, getCounterValue(t, "capflow_capture_events_ignored_total", labels))
}

func TestMetrics_DroppedDetectionBatches(t *testing.T) {
	labels := map[string]string{"flow": "face", "outcome": "dropped_out_of_order"}
	detectionBatchesTotal.WithLabelValues("face", "dropped_out_of_order")
	before := getCounterValue(t, "capflow_detection_batches_total", labels)

	r := newRig(t, model.FlowFace)
	r.arm()
	r.orch.HandleDetections(model.DetectionBatch{Seq: 5, Results: []model.Detection{face()}})
	r.orch.HandleDetections(model.DetectionBatch{Seq: 5})
	r.orch.HandleDetections(model.DetectionBatch{Seq: 3})

	require.Equal(t, before+2, getCounterValue(t, "capflow_detection_batches_total", labels))
}

func getCounterValue(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	mf := findMetricFamily(t, name)
	for _, m := range mf.Metric {
		if labelsMatch(m.GetLabel(), labels) {
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func findMetricFamily(t *testing.T, name string) *dto.MetricFamily {
	t.Helper()
	mfs, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	require.FailNow(t, "metric family not found", name)
	return nil
}

func labelsMatch(pairs []*dto.LabelPair, labels map[string]string) bool {
	if len(pairs) != len(labels) {
		return false
	}
	for _, pair := range pairs {
		if labels[pair.GetName()] != pair.GetValue() {
			return false
		}
	}
	return true
}
