// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ManuGH/capflow/internal/log"
	"github.com/ManuGH/capflow/internal/metrics"
)

// MemoryBus is an in-memory pub/sub. Delivery is in-process and lasts only
// while the publish context is active.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[string][]chan Message
	buffer int
}

const (
	dropLogEvery         = 100
	defaultSubscriberBuf = 64
)

var dropCount atomic.Uint64

func NewMemoryBus() *MemoryBus {
	return NewMemoryBusWithBuffer(defaultSubscriberBuf)
}

// NewMemoryBusWithBuffer sets the per-subscriber channel capacity.
func NewMemoryBusWithBuffer(buffer int) *MemoryBus {
	if buffer <= 0 {
		buffer = defaultSubscriberBuf
	}
	return &MemoryBus{subs: make(map[string][]chan Message), buffer: buffer}
}

func publishDropReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "context_done"
	}
}

// topicKind strips the per-session suffix so drop metrics stay low cardinality.
func topicKind(topic string) string {
	if strings.HasPrefix(topic, snapshotTopicPrefix) {
		return strings.TrimSuffix(snapshotTopicPrefix, ".")
	}
	return topic
}

func (b *MemoryBus) Publish(ctx context.Context, topic string, msg Message) error {
	if ctx == nil {
		return fmt.Errorf("publish context is nil")
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[topic] {
		select {
		case ch <- msg:
		case <-ctx.Done():
			reason := publishDropReason(ctx.Err())
			metrics.IncBusDropReason(topicKind(topic), reason)
			count := dropCount.Add(1)
			if count%dropLogEvery == 0 {
				log.L().Warn().
					Str("topic", topic).
					Str("reason", reason).
					Uint64("dropped", count).
					Msg("memory bus failed to publish due to context cancellation")
			}
			return fmt.Errorf("publish topic %q: %w", topic, ctx.Err())
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, topic string) (Subscriber, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch := make(chan Message, b.buffer)

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()

	return &memSub{b: b, topic: topic, ch: ch}, nil
}

// Subscribers returns the number of live subscriptions on topic.
func (b *MemoryBus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

type memSub struct {
	b      *MemoryBus
	topic  string
	ch     chan Message
	closed sync.Once
}

func (s *memSub) C() <-chan Message {
	return s.ch
}

func (s *memSub) Close() error {
	s.closed.Do(func() {
		s.b.mu.Lock()
		defer s.b.mu.Unlock()

		lst := s.b.subs[s.topic]
		out := lst[:0]
		for _, c := range lst {
			if c != s.ch {
				out = append(out, c)
			}
		}
		if len(out) == 0 {
			delete(s.b.subs, s.topic)
		} else {
			s.b.subs[s.topic] = out
		}
		close(s.ch)
	})
	return nil
}

var _ Bus = (*MemoryBus)(nil)
