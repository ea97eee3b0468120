package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/louyanyang/tensorrt-inference-server/internal/ir"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string
	InstanceID   string
	InitError    string
	Batches      []BatchTrace
	Accumulators []int32
	SleptMS      int64
}

// NewTraceSnapshot builds the snapshot of a result.
func NewTraceSnapshot(scenarioName string, result *Result) TraceSnapshot {
	return TraceSnapshot{
		ScenarioName: scenarioName,
		InstanceID:   result.InstanceID,
		InitError:    result.InitError,
		Batches:      result.Batches,
		Accumulators: result.Accumulators,
		SleptMS:      result.Slept.Milliseconds(),
	}
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical JSON serialization.
// This is required because ir.MarshalCanonical only handles primitives,
// slices and maps.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	batches := make([]any, len(s.Batches))
	for i, b := range s.Batches {
		slots := make([]any, len(b.Slots))
		for j, slot := range b.Slots {
			slots[j] = slot.canonicalMap()
		}
		batch := map[string]any{
			"batch": b.Batch,
			"seq":   b.Seq,
			"slots": slots,
		}
		if b.Error != "" {
			batch["error"] = b.Error
		}
		batches[i] = batch
	}

	result := map[string]any{
		"scenario_name": s.ScenarioName,
		"instance_id":   s.InstanceID,
		"batches":       batches,
		"slept_ms":      s.SleptMS,
	}
	if s.InitError != "" {
		result["init_error"] = s.InitError
	}
	if s.Accumulators != nil {
		result["accumulators"] = s.Accumulators
	}
	return result
}

func (t SlotTrace) canonicalMap() map[string]any {
	m := map[string]any{
		"slot":        t.Slot,
		"emitted":     t.Emitted,
		"written":     t.Written,
		"output":      t.Output,
		"accumulator": t.Accumulator,
	}
	if t.Error != "" {
		m["error"] = t.Error
	}
	if t.Step != nil {
		m["step"] = map[string]any{
			"start": t.Step.Start,
			"ready": t.Step.Ready,
			"input": t.Step.Input,
		}
	}
	if t.OutputShape != nil {
		m["output_shape"] = t.OutputShape
	}
	return m
}

// MarshalTrace serializes a result's trace as canonical JSON.
func MarshalTrace(scenarioName string, result *Result) ([]byte, error) {
	snapshot := NewTraceSnapshot(scenarioName, result)
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass, or an error if the
// scenario could not run. Test failure (via goldie) occurs if the trace
// doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalTrace(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
