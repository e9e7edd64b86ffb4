// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/ManuGH/capflow/internal/capture/model"
)

func FuzzDispatchInvariants(f *testing.F) {
	f.Add(0, []byte{1, 2, 6, 7, 11})
	f.Add(2, []byte{13, 14, 2, 6})
	f.Add(7, []byte{1, 2, 3})

	f.Fuzz(func(t *testing.T, phaseIdx int, events []byte) {
		if phaseIdx < 0 {
			phaseIdx = -phaseIdx
		}
		rec := model.NewSessionRecord("fuzz", model.FlowDocument, []model.Side{model.SideFront, model.SideBack}, time.Time{})
		rec.Phase = allPhases[phaseIdx%len(allPhases)]
		all := AllEvents()
		for _, b := range events {
			ev := all[int(b)%len(all)]
			before := rec.Phase
			wasTerminal := before.IsTerminal()
			_, err := Dispatch(rec, ev, time.Time{})
			if err != nil {
				if !errors.Is(err, ErrIllegalTransition) {
					t.Fatalf("unexpected error class: %v", err)
				}
				if rec.Phase != before {
					t.Fatalf("illegal dispatch mutated phase: %s -> %s", before, rec.Phase)
				}
				continue
			}
			if wasTerminal {
				t.Fatalf("terminal phase %s accepted %v", before, ev)
			}
			if rec.Phase == model.PhaseCapturing && !before.IsArmed() {
				t.Fatalf("capture started from unarmed phase %s", before)
			}
		}
	})
}
