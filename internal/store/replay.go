package store

import (
	"context"
	"fmt"

	"github.com/louyanyang/tensorrt-inference-server/internal/engine"
)

// Mismatch is a journaled value that replay could not reproduce.
type Mismatch struct {
	Seq      int64  `json:"seq"`
	Slot     int    `json:"slot"`
	Field    string `json:"field"` // "accumulator", "output" or "emitted"
	Recorded int32  `json:"recorded"`
	Replayed int32  `json:"replayed"`
}

// ReplayReport is the outcome of replaying one instance's journal.
type ReplayReport struct {
	InstanceID   string     `json:"instance_id"`
	Batches      int        `json:"batches"`
	Steps        int        `json:"steps"` // Slots whose step rule was re-applied
	Mismatches   []Mismatch `json:"mismatches"`
	Accumulators []int32    `json:"accumulators"` // Replayed values after the last batch
}

// OK reports whether replay reproduced every journaled value.
func (r *ReplayReport) OK() bool {
	return len(r.Mismatches) == 0
}

// Replay re-applies every journaled step of an instance, in seq order,
// to fresh zeroed accumulators using the engine's step rule, and compares
// each result with what was journaled.
//
// A slot with decoded inputs always ran the step rule, even if writing
// its output failed afterwards. Slots without inputs are skipped.
// Instances restored from a checkpoint replay from zero and will report
// mismatches on their first steps.
func (s *Store) Replay(ctx context.Context, instanceID string) (*ReplayReport, error) {
	records, err := s.ReadExecutions(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", instanceID, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("replay %s: no journaled batches", instanceID)
	}

	report := &ReplayReport{
		InstanceID: instanceID,
		Batches:    len(records),
		Mismatches: []Mismatch{},
	}

	acc := engine.NewAccumulators(len(records[0].Accumulators))
	for _, rec := range records {
		for _, slot := range rec.Slots {
			if slot.Step == nil {
				continue
			}
			if slot.Slot >= acc.Len() {
				return nil, fmt.Errorf("replay %s: seq %d slot %d outside %d accumulators",
					instanceID, rec.Seq, slot.Slot, acc.Len())
			}

			value, emit := acc.Step(slot.Slot, slot.Step.Start, slot.Step.Ready, slot.Step.Input)
			report.Steps++

			if value != slot.Accumulator {
				report.Mismatches = append(report.Mismatches, Mismatch{
					Seq: rec.Seq, Slot: slot.Slot, Field: "accumulator",
					Recorded: slot.Accumulator, Replayed: value,
				})
			}
			if emit != slot.Emitted {
				report.Mismatches = append(report.Mismatches, Mismatch{
					Seq: rec.Seq, Slot: slot.Slot, Field: "emitted",
					Recorded: boolInt(slot.Emitted), Replayed: boolInt(emit),
				})
			} else if emit && value != slot.Output {
				report.Mismatches = append(report.Mismatches, Mismatch{
					Seq: rec.Seq, Slot: slot.Slot, Field: "output",
					Recorded: slot.Output, Replayed: value,
				})
			}
		}
	}

	report.Accumulators = acc.Snapshot()
	return report, nil
}

func boolInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
