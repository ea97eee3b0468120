package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestModel writes a valid sequence model directory and returns its
// path.
func createTestModel(t *testing.T, dir string) string {
	t.Helper()
	modelDir := filepath.Join(dir, "models", "seq")
	if err := os.MkdirAll(modelDir, 0755); err != nil {
		t.Fatal(err)
	}
	src := `package models

max_batch_size: 2
sequence_batching: control_input: [{name: "START"}, {name: "READY"}]
input: [{name: "INPUT", data_type: "TYPE_INT32", dims: [-1]}]
output: [{name: "OUTPUT", data_type: "TYPE_INT32", dims: [-1]}]
`
	if err := os.WriteFile(filepath.Join(modelDir, "model.cue"), []byte(src), 0644); err != nil {
		t.Fatal(err)
	}
	return modelDir
}

func writeScenario(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	dir := t.TempDir()
	createTestModel(t, dir)

	path := writeScenario(t, dir, `
name: test_scenario
description: "Test scenario for validation"
model: models/seq
device: -1
batches:
  - payloads:
      - start: 1
        ready: 1
        input: [1, 2]
        chunks: [3]
        sink: decline
    expect:
      slots:
        - {no_output: true, accumulator: 3}
accumulators: [3, 0]
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, filepath.Join(dir, "models", "seq"), scenario.Model, "model resolved against scenario dir")
	require.NotNil(t, scenario.Device)
	assert.Equal(t, -1, *scenario.Device)
	require.Len(t, scenario.Batches, 1)

	p := scenario.Batches[0].Payloads[0]
	assert.Equal(t, int32(1), p.Start)
	assert.Equal(t, []int32{1, 2}, p.Input)
	assert.Equal(t, []int{3}, p.Chunks)
	assert.Equal(t, "decline", p.Sink)
	assert.Nil(t, p.Outputs, "absent outputs stay nil")
	assert.Nil(t, p.BatchSize)

	se := scenario.Batches[0].Expect.Slots[0]
	assert.True(t, se.NoOutput)
	require.NotNil(t, se.Accumulator)
	assert.Equal(t, int32(3), *se.Accumulator)
	assert.Equal(t, []int32{3, 0}, scenario.Accumulators)
}

func TestLoadScenario_EmptyOutputs(t *testing.T) {
	dir := t.TempDir()
	createTestModel(t, dir)

	path := writeScenario(t, dir, `
name: no_outputs
description: "Explicit empty outputs"
model: models/seq
batches:
  - payloads:
      - {start: 1, ready: 1, input: [1], outputs: []}
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	outputs := scenario.Batches[0].Payloads[0].Outputs
	assert.NotNil(t, outputs)
	assert.Empty(t, outputs)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name: "missing name",
			content: `
description: "x"
model: models/seq
batches: [{payloads: []}]
`,
			want: "name is required",
		},
		{
			name: "missing description",
			content: `
name: x
model: models/seq
batches: [{payloads: []}]
`,
			want: "description is required",
		},
		{
			name: "missing model",
			content: `
name: x
description: "x"
batches: [{payloads: []}]
`,
			want: "model is required",
		},
		{
			name: "model not found",
			content: `
name: x
description: "x"
model: models/missing
batches: [{payloads: []}]
`,
			want: "model not found",
		},
		{
			name: "missing batches",
			content: `
name: x
description: "x"
model: models/seq
`,
			want: "batches list is required",
		},
		{
			name: "unknown sink",
			content: `
name: x
description: "x"
model: models/seq
batches:
  - payloads: [{start: 1, ready: 1, input: [1], sink: maybe}]
`,
			want: `batches[0].payloads[0]: unknown sink "maybe"`,
		},
		{
			name: "negative chunk",
			content: `
name: x
description: "x"
model: models/seq
batches:
  - payloads: [{start: 1, ready: 1, input: [1], chunks: [-1]}]
`,
			want: "chunk sizes must be non-negative",
		},
		{
			name: "too many slot expectations",
			content: `
name: x
description: "x"
model: models/seq
batches:
  - payloads: [{start: 1, ready: 1, input: [1]}]
    expect:
      slots: [{output: 1}, {output: 2}]
`,
			want: "2 slot expectations for 1 payloads",
		},
		{
			name: "output and no_output",
			content: `
name: x
description: "x"
model: models/seq
batches:
  - payloads: [{start: 1, ready: 1, input: [1]}]
    expect:
      slots: [{output: 1, no_output: true}]
`,
			want: "output and no_output are exclusive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			createTestModel(t, dir)

			_, err := LoadScenario(writeScenario(t, dir, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid scenario")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_InitErrorWithoutBatches(t *testing.T) {
	dir := t.TempDir()
	createTestModel(t, dir)

	scenario, err := LoadScenario(writeScenario(t, dir, `
name: init_only
description: "Only checks Init"
model: models/seq
init_error: UNSUPPORTED_DEVICE
device: 0
`))
	require.NoError(t, err)
	assert.Empty(t, scenario.Batches)
}

func TestLoadScenario_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadScenario(writeScenario(t, dir, "name: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_UnknownFieldsRejected(t *testing.T) {
	dir := t.TempDir()
	createTestModel(t, dir)

	_, err := LoadScenario(writeScenario(t, dir, `
name: typo
description: "x"
model: models/seq
batches:
  - payloads:
      - {start: 1, ready: 1, inputs: [1]}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inputs")
}

func TestLoadScenarioWithBasePath(t *testing.T) {
	dir := t.TempDir()
	createTestModel(t, dir)
	scenarioDir := filepath.Join(dir, "scenarios")
	require.NoError(t, os.MkdirAll(scenarioDir, 0755))

	path := filepath.Join(scenarioDir, "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: based
description: "Model path relative to an explicit base"
model: models/seq
batches: [{payloads: []}]
`), 0644))

	scenario, err := LoadScenarioWithBasePath(path, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "models", "seq"), scenario.Model)
}

func TestLoadScenario_AbsoluteModelPath(t *testing.T) {
	dir := t.TempDir()
	model := createTestModel(t, dir)
	other := t.TempDir()

	scenario, err := LoadScenario(writeScenario(t, other, `
name: absolute
description: "Absolute model path"
model: `+model+`
batches: [{payloads: []}]
`))
	require.NoError(t, err)
	assert.Equal(t, model, scenario.Model)
}

func TestLoadExampleScenarios(t *testing.T) {
	paths, err := filepath.Glob("../../testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)
			assert.NotEmpty(t, scenario.Name)
		})
	}
}
