package harness

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/louyanyang/tensorrt-inference-server/internal/engine"
	"github.com/louyanyang/tensorrt-inference-server/internal/store"
)

func intPtr(v int) *int { return &v }

func testScenario(t *testing.T, batches ...Batch) *Scenario {
	t.Helper()
	return &Scenario{
		Name:        "inline",
		Description: "inline scenario",
		Model:       createTestModel(t, t.TempDir()),
		Batches:     batches,
	}
}

func TestRun_MinimalScenario(t *testing.T) {
	scenario := testScenario(t, Batch{
		Payloads: []PayloadSpec{{Start: 1, Ready: 1, Input: []int32{2, 3}}},
		Expect:   &BatchExpect{Slots: []SlotExpect{{Output: int32Ptr(5)}}},
	})
	scenario.Accumulators = []int32{5, 0}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
	assert.Equal(t, "scenario-inline", result.InstanceID)
	require.Len(t, result.Batches, 1)

	batch := result.Batches[0]
	assert.Equal(t, int64(1), batch.Seq)
	require.Len(t, batch.Slots, 1)
	assert.True(t, batch.Slots[0].Written)
	assert.Equal(t, int32(5), batch.Slots[0].Output)
	assert.Equal(t, []int64{1, 2}, batch.Slots[0].OutputShape)
	assert.Equal(t, []int32{5, 0}, result.Accumulators)
}

func TestRun_ExpectationFailures(t *testing.T) {
	scenario := testScenario(t, Batch{
		Payloads: []PayloadSpec{{Start: 1, Ready: 1, Input: []int32{2}}},
		Expect: &BatchExpect{Slots: []SlotExpect{
			{Output: int32Ptr(3)},
		}},
	})
	scenario.Accumulators = []int32{9, 9}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], AssertSlotOutput)
	assert.Contains(t, result.Errors[1], AssertAccumulators)
}

func TestRun_SlotErrors(t *testing.T) {
	scenario := testScenario(t, Batch{
		Payloads: []PayloadSpec{
			{Start: 1, Ready: 1, Input: []int32{1}, Omit: []string{engine.ControlStart}},
			{Start: 1, Ready: 1, Input: []int32{4}, BufferSize: 2},
		},
		Expect: &BatchExpect{Slots: []SlotExpect{
			{Error: string(engine.ErrCodeSizeMismatch)},
			{Error: string(engine.ErrCodeOutputBuffer), NoOutput: true, Accumulator: int32Ptr(4)},
		}},
	})

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	slots := result.Batches[0].Slots
	assert.Nil(t, slots[0].Step, "no step when a control input is missing")
	assert.True(t, slots[1].Emitted)
	assert.False(t, slots[1].Written)
}

func TestRun_InitFailure(t *testing.T) {
	scenario := testScenario(t, Batch{
		Payloads: []PayloadSpec{{Start: 1, Ready: 1, Input: []int32{1}}},
		Expect:   &BatchExpect{Error: string(engine.ErrCodeNotInitialized)},
	})
	scenario.Device = intPtr(0)
	scenario.InitError = string(engine.ErrCodeUnsupportedDevice)

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, string(engine.ErrCodeUnsupportedDevice), result.InitError)
	assert.Nil(t, result.Accumulators)
	assert.Equal(t, int64(0), result.Batches[0].Seq)
}

func TestRun_UnexpectedInitFailure(t *testing.T) {
	scenario := testScenario(t)
	scenario.Device = intPtr(1)

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "actual UNSUPPORTED_DEVICE")
}

func TestRun_ModelErrors(t *testing.T) {
	t.Run("missing model", func(t *testing.T) {
		scenario := &Scenario{Name: "x", Model: filepath.Join(t.TempDir(), "missing")}
		_, err := Run(scenario)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load model")
	})

	t.Run("schema violation", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.cue")
		writeFile(t, path, `max_batch_size: -1`)

		_, err := Run(&Scenario{Name: "x", Model: path})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid model bad")
		assert.Contains(t, err.Error(), "[E202]")
	})
}

func TestRun_Deterministic(t *testing.T) {
	scenario := testScenario(t,
		Batch{Payloads: []PayloadSpec{{Start: 1, Ready: 1, Input: []int32{1, 2}}}},
		Batch{Payloads: []PayloadSpec{{Start: 0, Ready: 1, Input: []int32{3}}, {Start: 1, Ready: 1, Input: []int32{4}}}},
	)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	firstJSON, err := MarshalTrace(scenario.Name, first)
	require.NoError(t, err)
	secondJSON, err := MarshalTrace(scenario.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(firstJSON), string(secondJSON))
}

func TestRun_DelayIsRecordedNotSlept(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slow.cue")
	writeFile(t, path, `
max_batch_size: 1
sequence_batching: control_input: [{name: "START"}, {name: "READY"}]
input: [{name: "INPUT", data_type: "TYPE_INT32", dims: [-1]}]
output: [{name: "OUTPUT", data_type: "TYPE_INT32", dims: [-1]}]
parameters: execute_delay_ms: "60000"
`)
	scenario := &Scenario{
		Name:  "slow",
		Model: path,
		Batches: []Batch{
			{Payloads: []PayloadSpec{{Start: 1, Ready: 1, Input: []int32{1}}}},
			{Payloads: []PayloadSpec{{Start: 0, Ready: 1, Input: []int32{1}}}},
		},
	}

	start := time.Now()
	result, err := Run(scenario)
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 30*time.Second)
	assert.Equal(t, 2*time.Minute, result.Slept)
}

func TestRunWithOptions_SharedStore(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer st.Close()

	scenario := testScenario(t,
		Batch{Payloads: []PayloadSpec{{Start: 1, Ready: 1, Input: []int32{5}}}},
		Batch{Payloads: []PayloadSpec{{Start: 0, Ready: 1, Input: []int32{6}}}},
	)

	result, err := RunWithOptions(scenario, Options{Store: st, InstanceID: "shared-1"})
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "shared-1", result.InstanceID)

	ctx := context.Background()
	records, err := st.ReadExecutions(ctx, "shared-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []int32{11, 0}, records[1].Accumulators)

	checkpoint, err := st.ReadAccumulators(ctx, "shared-1")
	require.NoError(t, err)
	assert.Equal(t, []int32{11, 0}, checkpoint.Values)

	// Running the same instance again would collide with its journal.
	_, err = RunWithOptions(scenario, Options{Store: st, InstanceID: "shared-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already journaled up to seq 2")
}

func TestBuildPayload_Defaults(t *testing.T) {
	p, sink := buildPayload(PayloadSpec{Start: 1, Ready: 1, Input: []int32{1, 2, 3}})

	assert.Equal(t, 1, p.BatchSize)
	assert.Equal(t, []int64{3}, p.InputShapes[engine.InputName])
	assert.Equal(t, []string{engine.OutputName}, p.RequiredOutputs)
	assert.Same(t, sink, p.Output)
}

func TestBuildPayload_Overrides(t *testing.T) {
	declared := int64(-1)
	p, _ := buildPayload(PayloadSpec{
		Input:            []int32{1},
		DeclaredElements: &declared,
		BatchSize:        intPtr(3),
		Outputs:          []string{},
		Omit:             []string{engine.ControlReady},
		SourceFail:       engine.InputName,
	})

	assert.Equal(t, 3, p.BatchSize)
	assert.Equal(t, []int64{-1}, p.InputShapes[engine.InputName])
	assert.Empty(t, p.RequiredOutputs)

	chunk, err := p.Input.NextChunk(engine.ControlReady, 4)
	require.NoError(t, err)
	assert.Nil(t, chunk, "omitted input ends immediately")

	_, err = p.Input.NextChunk(engine.InputName, 4)
	assert.ErrorIs(t, err, errSourceFailed)
}

func TestResult_AddError(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)

	r.AddError("first")
	r.AddError("second")

	assert.False(t, r.Pass)
	assert.Equal(t, []string{"first", "second"}, r.Errors)
}
