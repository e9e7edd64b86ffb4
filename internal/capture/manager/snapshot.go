// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package manager

import "github.com/ManuGH/capflow/internal/capture/model"

// snapshotLocked projects the session record. With next set the emission
// sequence advances.
func (o *Orchestrator) snapshotLocked(next bool) model.Snapshot {
	if next {
		o.seq++
	}
	sides := make([]model.SideSnapshot, 0, len(o.cfg.Sides))
	for _, s := range o.cfg.Sides {
		st, ok := o.rec.Sides[s]
		if !ok {
			continue
		}
		sides = append(sides, model.SideSnapshot{
			Side:        s,
			Status:      st.Status,
			Attempts:    st.Attempts,
			RetriesLeft: o.retry.RetriesLeft(st.Counters),
		})
	}
	return model.Snapshot{
		Seq:          o.seq,
		SessionID:    o.id,
		Flow:         o.flow,
		Phase:        o.rec.Phase,
		Side:         o.rec.Side,
		Sides:        sides,
		HelpVisible:  o.rec.HelpVisible,
		Feedback:     o.rec.Feedback,
		ManualReason: o.rec.ManualReason,
		Error:        o.rec.Error,
		Countdown:    o.rec.Countdown,
		Thumbnail:    o.rec.Thumbnail,
		UpdatedAt:    o.rec.UpdatedAt,
	}
}

// emit renders snap unless a newer snapshot already went out.
func (o *Orchestrator) emit(snap model.Snapshot) {
	o.emitMu.Lock()
	defer o.emitMu.Unlock()
	if snap.Seq <= o.emitted {
		snapshotsDroppedTotal.Inc()
		return
	}
	o.emitted = snap.Seq
	o.view.Render(snap)
}
