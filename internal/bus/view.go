// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bus

import (
	"context"
	"time"

	"github.com/ManuGH/capflow/internal/capture/model"
	"github.com/ManuGH/capflow/internal/log"
)

const defaultPublishTimeout = 100 * time.Millisecond

// SnapshotView renders snapshots by publishing them on the session topic.
// Viewers that fall behind by more than the publish timeout miss snapshots;
// every snapshot carries the full state, so the next one catches them up.
type SnapshotView struct {
	bus     Bus
	topic   string
	timeout time.Duration
}

// NewSnapshotView returns a View for sessionID. A non-positive timeout uses
// the default.
func NewSnapshotView(b Bus, sessionID string, timeout time.Duration) *SnapshotView {
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &SnapshotView{bus: b, topic: SnapshotTopic(sessionID), timeout: timeout}
}

func (v *SnapshotView) Render(snap model.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), v.timeout)
	defer cancel()
	if err := v.bus.Publish(ctx, v.topic, snap); err != nil {
		log.L().Debug().Err(err).
			Str(log.FieldSessionID, snap.SessionID).
			Uint64("seq", snap.Seq).
			Msg("snapshot not delivered to all viewers")
	}
}
