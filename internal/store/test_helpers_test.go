package store

import (
	"path/filepath"
	"testing"

	"github.com/louyanyang/tensorrt-inference-server/internal/ir"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestExecution wraps slots in a batch record with a real ID.
func createTestExecution(t *testing.T, instanceID string, seq int64, accumulators []int32, slots ...ir.SlotRecord) ir.ExecutionRecord {
	t.Helper()
	id, err := ir.ExecutionID(instanceID, seq)
	if err != nil {
		t.Fatalf("ExecutionID() failed: %v", err)
	}
	return ir.ExecutionRecord{
		ID:            id,
		InstanceID:    instanceID,
		ModelName:     "simple_sequence",
		Seq:           seq,
		PayloadCount:  len(slots),
		ConfigHash:    "test-hash",
		EngineVersion: ir.EngineVersion,
		Slots:         slots,
		Accumulators:  accumulators,
	}
}

// stepSlot creates a slot record for a step that emitted value.
func stepSlot(slot int, start, ready int32, input []int32, value int32) ir.SlotRecord {
	return ir.SlotRecord{
		Slot:        slot,
		Step:        &ir.StepInput{Start: start, Ready: ready, Input: input},
		Emitted:     ready != 0,
		Written:     ready != 0,
		Output:      outputIf(ready != 0, value),
		Accumulator: value,
	}
}

func outputIf(emitted bool, v int32) int32 {
	if emitted {
		return v
	}
	return 0
}
