// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package bus fans capture snapshots out to any number of viewers.
package bus

import "context"

// Message is an opaque payload; snapshot topics carry model.Snapshot values.
type Message interface{}

type Subscriber interface {
	// C returns a read-only message channel, closed by Close.
	C() <-chan Message
	// Close unsubscribes.
	Close() error
}

// Bus is the in-process event transport.
type Bus interface {
	Publish(ctx context.Context, topic string, msg Message) error
	Subscribe(ctx context.Context, topic string) (Subscriber, error)
}

const snapshotTopicPrefix = "capture.snapshot."

// SnapshotTopic is the topic carrying the snapshots of one session.
func SnapshotTopic(sessionID string) string {
	return snapshotTopicPrefix + sessionID
}
