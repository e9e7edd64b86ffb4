// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ManuGH/capflow/internal/capture/model"
	"github.com/ManuGH/capflow/internal/log"
	"github.com/ManuGH/capflow/internal/metrics"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisBus carries messages over Redis Pub/Sub so snapshot viewers can be
// served by any replica. Messages travel as JSON; snapshot topics decode
// back into model.Snapshot, every other topic into json.RawMessage.
type RedisBus struct {
	client *redis.Client
	buffer int
}

// NewRedisBus connects to Redis and fails when the server is unreachable.
func NewRedisBus(ctx context.Context, cfg RedisConfig) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger := log.WithComponent("bus")
	logger.Info().
		Str("addr", cfg.Addr).
		Int("db", cfg.DB).
		Msg("connected to Redis bus")
	return newRedisBus(client), nil
}

func newRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client, buffer: defaultSubscriberBuf}
}

func (b *RedisBus) Publish(ctx context.Context, topic string, msg Message) error {
	if ctx == nil {
		return fmt.Errorf("publish context is nil")
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message for %q: %w", topic, err)
	}
	if err := b.client.Publish(ctx, topic, data).Err(); err != nil {
		reason := "redis_error"
		if ctx.Err() != nil {
			reason = publishDropReason(ctx.Err())
		}
		metrics.IncBusDropReason(topicKind(topic), reason)
		return fmt.Errorf("publish topic %q: %w", topic, err)
	}
	return nil
}

// Subscribe returns once Redis confirmed the subscription, so a publish that
// follows it is delivered.
func (b *RedisBus) Subscribe(ctx context.Context, topic string) (Subscriber, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ps := b.client.Subscribe(ctx, topic)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %q: %w", topic, err)
	}

	s := &redisSub{
		ps:   ps,
		out:  make(chan Message, b.buffer),
		done: make(chan struct{}),
	}
	go s.run(topic)
	return s, nil
}

// Close releases the Redis connection pool.
func (b *RedisBus) Close() error {
	return b.client.Close()
}

type redisSub struct {
	ps     *redis.PubSub
	out    chan Message
	done   chan struct{}
	closed sync.Once
}

// run forwards decoded messages. A full subscriber buffer drops the message
// instead of stalling the shared Redis connection.
func (s *redisSub) run(topic string) {
	defer close(s.done)
	defer close(s.out)
	for raw := range s.ps.Channel() {
		msg, err := decodeMessage(raw.Channel, []byte(raw.Payload))
		if err != nil {
			logger := log.WithComponent("bus")
			logger.Warn().Err(err).Str("topic", raw.Channel).Msg("dropping undecodable message")
			metrics.IncBusDropReason(topicKind(topic), "decode")
			continue
		}
		select {
		case s.out <- msg:
		default:
			metrics.IncBusDropReason(topicKind(topic), "subscriber_full")
		}
	}
}

func (s *redisSub) C() <-chan Message {
	return s.out
}

func (s *redisSub) Close() error {
	var err error
	s.closed.Do(func() {
		err = s.ps.Close()
		<-s.done
	})
	if errors.Is(err, redis.ErrClosed) {
		return nil
	}
	return err
}

func decodeMessage(topic string, data []byte) (Message, error) {
	if strings.HasPrefix(topic, snapshotTopicPrefix) {
		var snap model.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, err
		}
		return snap, nil
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("invalid JSON payload")
	}
	return json.RawMessage(data), nil
}

var _ Bus = (*RedisBus)(nil)
