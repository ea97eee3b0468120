package harness

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/louyanyang/tensorrt-inference-server/internal/ir"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// TestScenarios runs every scenario under testdata/scenarios and compares
// its trace with testdata/golden/<name>.golden.
func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob("../../testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestMarshalTrace_Canonical(t *testing.T) {
	result := NewResult()
	result.InstanceID = "inst-1"
	result.AddBatch(BatchTrace{Batch: 0, Seq: 1, Slots: []SlotTrace{
		{
			Slot:        0,
			Step:        &ir.StepInput{Start: 1, Ready: 1, Input: []int32{2, 3}},
			Emitted:     true,
			Written:     true,
			Output:      5,
			Accumulator: 5,
			OutputShape: []int64{1, 2},
		},
		{Slot: 1, Error: "SIZE_MISMATCH"},
	}})
	result.AddBatch(BatchTrace{Batch: 1, Error: "BATCH_TOO_LARGE", Slots: []SlotTrace{}})
	result.Accumulators = []int32{5, 0}

	data, err := MarshalTrace("canonical", result)
	require.NoError(t, err)

	expected := `{"accumulators":[5,0],"batches":[` +
		`{"batch":0,"seq":1,"slots":[` +
		`{"accumulator":5,"emitted":true,"output":5,"output_shape":[1,2],"slot":0,"step":{"input":[2,3],"ready":1,"start":1},"written":true},` +
		`{"accumulator":0,"emitted":false,"error":"SIZE_MISMATCH","output":0,"slot":1,"written":false}]},` +
		`{"batch":1,"error":"BATCH_TOO_LARGE","seq":0,"slots":[]}],` +
		`"instance_id":"inst-1","scenario_name":"canonical","slept_ms":0}`
	assert.Equal(t, expected, string(data))
}

func TestMarshalTrace_InitFailureOmitsAccumulators(t *testing.T) {
	result := NewResult()
	result.InstanceID = "inst-2"
	result.InitError = "INVALID_DATA_TYPE"

	data, err := MarshalTrace("init", result)
	require.NoError(t, err)
	assert.Equal(t,
		`{"batches":[],"init_error":"INVALID_DATA_TYPE","instance_id":"inst-2","scenario_name":"init","slept_ms":0}`,
		string(data))
}

func TestCanonicalJSONDeterminism(t *testing.T) {
	result := NewResult()
	result.InstanceID = "inst-3"
	result.AddBatch(BatchTrace{Batch: 0, Seq: 1, Slots: []SlotTrace{
		{Slot: 0, Step: &ir.StepInput{Start: 1, Ready: 1, Input: []int32{1}}, Emitted: true, Written: true, Output: 1, Accumulator: 1},
	}})

	first, err := MarshalTrace("determinism", result)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := MarshalTrace("determinism", result)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestAssertGolden_FromResult(t *testing.T) {
	scenario, err := LoadScenario("../../testdata/scenarios/accumulate.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)

	require.NoError(t, AssertGolden(t, "accumulate", result))
}
