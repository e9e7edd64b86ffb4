// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/capflow/internal/capture/model"
)

func setupRedisBus(t *testing.T) (*miniredis.Miniredis, *RedisBus) {
	t.Helper()
	mr := miniredis.RunT(t)
	b := newRedisBus(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = b.Close() })
	return mr, b
}

func receive(t *testing.T, sub Subscriber) Message {
	t.Helper()
	select {
	case msg, ok := <-sub.C():
		require.True(t, ok, "subscription closed")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
		return nil
	}
}

func TestRedisBus_SnapshotRoundTrip(t *testing.T) {
	_, b := setupRedisBus(t)
	ctx := context.Background()
	topic := SnapshotTopic("s-1")

	sub, err := b.Subscribe(ctx, topic)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })

	sent := model.Snapshot{
		Seq:       7,
		SessionID: "s-1",
		Flow:      model.FlowDocument,
		Phase:     model.PhaseUninitialized,
		UpdatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, b.Publish(ctx, topic, sent))

	got, ok := receive(t, sub).(model.Snapshot)
	require.True(t, ok, "snapshot topics decode into model.Snapshot")
	require.Equal(t, sent.Seq, got.Seq)
	require.Equal(t, sent.SessionID, got.SessionID)
	require.Equal(t, sent.Phase, got.Phase)
	require.True(t, sent.UpdatedAt.Equal(got.UpdatedAt))
}

func TestRedisBus_OtherTopicsStayRaw(t *testing.T) {
	_, b := setupRedisBus(t)
	ctx := context.Background()

	sub, err := b.Subscribe(ctx, "audit")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })

	require.NoError(t, b.Publish(ctx, "audit", map[string]string{"event": "created"}))
	raw, ok := receive(t, sub).(json.RawMessage)
	require.True(t, ok)
	require.JSONEq(t, `{"event":"created"}`, string(raw))
}

func TestRedisBus_CloseEndsSubscription(t *testing.T) {
	_, b := setupRedisBus(t)
	sub, err := b.Subscribe(context.Background(), SnapshotTopic("s-2"))
	require.NoError(t, err)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	_, open := <-sub.C()
	require.False(t, open)
}

func TestRedisBus_PublishFailsWhenServerGone(t *testing.T) {
	mr, b := setupRedisBus(t)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.Error(t, b.Publish(ctx, SnapshotTopic("s-3"), model.Snapshot{Seq: 1}))
}

func TestNewRedisBus_FailsWithoutServer(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisBus(context.Background(), RedisConfig{Addr: addr})
	require.Error(t, err)
}

func TestRedisBus_SnapshotViewPublishes(t *testing.T) {
	_, b := setupRedisBus(t)
	sub, err := b.Subscribe(context.Background(), SnapshotTopic("s-4"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })

	view := NewSnapshotView(b, "s-4", time.Second)
	view.Render(model.Snapshot{Seq: 1, SessionID: "s-4", Phase: model.PhaseUninitialized})

	got, ok := receive(t, sub).(model.Snapshot)
	require.True(t, ok)
	require.Equal(t, uint64(1), got.Seq)
}
