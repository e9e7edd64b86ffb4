// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bus

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/capflow/internal/capture/model"
	"github.com/ManuGH/capflow/internal/metrics"
)

func getCounterValue(t *testing.T, counter prometheus.Counter) float64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, counter.Write(metric))
	return metric.GetCounter().GetValue()
}

func TestMemoryBusPublishContextTimeoutIncrementsDropMetrics(t *testing.T) {
	b := NewMemoryBusWithBuffer(2)
	topic := SnapshotTopic("s-1")
	sub, err := b.Subscribe(context.Background(), topic)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })

	for i := 0; i < cap(sub.C()); i++ {
		require.NoError(t, b.Publish(context.Background(), topic, i))
	}

	initial := getCounterValue(t, metrics.BusDroppedTotal.WithLabelValues("capture.snapshot", "timeout"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = b.Publish(ctx, topic, "blocked")
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	final := getCounterValue(t, metrics.BusDroppedTotal.WithLabelValues("capture.snapshot", "timeout"))
	require.Greater(t, final, initial, "expected drop counter to increase")
}

func TestMemoryBusPublishRejectsNilContext(t *testing.T) {
	b := NewMemoryBus()
	//nolint:staticcheck // nil context is the case under test
	err := b.Publish(nil, "topic", "msg")
	require.Error(t, err)
	require.Contains(t, err.Error(), "context is nil")
}

func TestMemoryBusFanOutAndUnsubscribe(t *testing.T) {
	b := NewMemoryBus()
	ctx := context.Background()
	first, err := b.Subscribe(ctx, "t")
	require.NoError(t, err)
	second, err := b.Subscribe(ctx, "t")
	require.NoError(t, err)
	require.Equal(t, 2, b.Subscribers("t"))

	require.NoError(t, b.Publish(ctx, "t", "hello"))
	require.Equal(t, "hello", <-first.C())
	require.Equal(t, "hello", <-second.C())

	require.NoError(t, first.Close())
	require.NoError(t, first.Close())
	_, open := <-first.C()
	require.False(t, open)
	require.Equal(t, 1, b.Subscribers("t"))

	require.NoError(t, second.Close())
	require.Zero(t, b.Subscribers("t"))
	require.NoError(t, b.Publish(ctx, "t", "nobody listens"))
}

func TestMemoryBusSubscribeCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemoryBus().Subscribe(ctx, "t")
	require.ErrorIs(t, err, context.Canceled)
}

func TestSnapshotViewPublishesOnSessionTopic(t *testing.T) {
	b := NewMemoryBus()
	sub, err := b.Subscribe(context.Background(), SnapshotTopic("s-9"))
	require.NoError(t, err)
	defer sub.Close()

	view := NewSnapshotView(b, "s-9", 0)
	view.Render(model.Snapshot{Seq: 1, SessionID: "s-9", Phase: model.PhaseReady})

	select {
	case msg := <-sub.C():
		snap, ok := msg.(model.Snapshot)
		require.True(t, ok)
		require.Equal(t, uint64(1), snap.Seq)
		require.Equal(t, model.PhaseReady, snap.Phase)
	case <-time.After(time.Second):
		t.Fatal("snapshot not delivered")
	}
}

func TestSnapshotViewDoesNotBlockOnSlowViewer(t *testing.T) {
	b := NewMemoryBusWithBuffer(1)
	sub, err := b.Subscribe(context.Background(), SnapshotTopic("s-2"))
	require.NoError(t, err)
	defer sub.Close()

	view := NewSnapshotView(b, "s-2", 10*time.Millisecond)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := uint64(1); i <= 5; i++ {
			view.Render(model.Snapshot{Seq: i, SessionID: "s-2"})
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("render blocked on a slow viewer")
	}
	first := (<-sub.C()).(model.Snapshot)
	require.Equal(t, uint64(1), first.Seq)
}
