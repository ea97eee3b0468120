package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/louyanyang/tensorrt-inference-server/internal/testutil"
)

// Scenario defines one engine instance and the batches executed on it.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Model is the CUE directory or file holding the model configuration.
	// Relative paths are resolved against the scenario file location.
	Model string `yaml:"model"`

	// Device is the device affinity passed to the engine. Nil means NoGPU.
	Device *int `yaml:"device,omitempty"`

	// InstanceID fixes the journal instance ID. Defaults to
	// "scenario-<name>" so golden traces are deterministic.
	InstanceID string `yaml:"instance_id,omitempty"`

	// InitialAccumulators restores slot values before the first batch.
	InitialAccumulators []int32 `yaml:"initial_accumulators,omitempty"`

	// InitError is the expected Init failure code. Empty means Init must
	// succeed.
	InitError string `yaml:"init_error,omitempty"`

	// Batches are executed in order on the same instance.
	Batches []Batch `yaml:"batches"`

	// Accumulators are the expected slot values after the last batch.
	// Nil skips the check.
	Accumulators []int32 `yaml:"accumulators,omitempty"`
}

// Batch is one Execute call.
type Batch struct {
	// Payloads fill slots 0..n-1.
	Payloads []PayloadSpec `yaml:"payloads"`

	// Expect describes the expected outcome. If nil, nothing is checked.
	Expect *BatchExpect `yaml:"expect,omitempty"`
}

// PayloadSpec describes one payload and the source and sink behind it.
type PayloadSpec struct {
	Start int32   `yaml:"start"`
	Ready int32   `yaml:"ready"`
	Input []int32 `yaml:"input"`

	// Chunks splits the encoded INPUT bytes into chunks of these sizes.
	Chunks []int `yaml:"chunks,omitempty"`

	// DeclaredElements overrides the INPUT element count of the payload
	// shape. Defaults to len(Input).
	DeclaredElements *int64 `yaml:"declared_elements,omitempty"`

	// BatchSize defaults to 1.
	BatchSize *int `yaml:"batch_size,omitempty"`

	// Outputs lists the requested outputs. Nil requests OUTPUT; an empty
	// list requests nothing.
	Outputs []string `yaml:"outputs,omitempty"`

	// Omit lists inputs the source never delivers.
	Omit []string `yaml:"omit,omitempty"`

	// SourceFail names an input whose reads fail.
	SourceFail string `yaml:"source_fail,omitempty"`

	// Sink is accept (default), decline or fail.
	Sink string `yaml:"sink,omitempty"`

	// BufferSize overrides the size of accepted output buffers in bytes.
	BufferSize int `yaml:"buffer_size,omitempty"`
}

// BatchExpect specifies the expected outcome of one batch.
type BatchExpect struct {
	// Error is the expected batch-level error code. Empty means the batch
	// must execute.
	Error string `yaml:"error,omitempty"`

	// Slots are matched by index against the batch's slot results.
	Slots []SlotExpect `yaml:"slots,omitempty"`
}

// SlotExpect specifies the expected outcome of one slot.
type SlotExpect struct {
	// Error is the expected error code. Empty means the slot must succeed.
	Error string `yaml:"error,omitempty"`

	// Output is the value expected in the output buffer.
	Output *int32 `yaml:"output,omitempty"`

	// NoOutput requires that nothing was written.
	NoOutput bool `yaml:"no_output,omitempty"`

	// Accumulator is the expected slot value after the batch.
	Accumulator *int32 `yaml:"accumulator,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file, resolving the model
// path relative to the file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the model path relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, basePath)
}

// ParseScenario parses scenario YAML. Unknown fields are rejected.
func ParseScenario(data []byte, basePath string) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve the model path BEFORE validation so existence is checked
	// where the harness will load it.
	if scenario.Model != "" && !filepath.IsAbs(scenario.Model) && basePath != "" {
		scenario.Model = filepath.Join(basePath, scenario.Model)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Model == "" {
		return fmt.Errorf("model is required")
	}
	if _, err := os.Stat(s.Model); os.IsNotExist(err) {
		return fmt.Errorf("model not found: %s", s.Model)
	}

	if len(s.Batches) == 0 && s.InitError == "" {
		return fmt.Errorf("batches list is required and must be non-empty")
	}

	for i, batch := range s.Batches {
		for j, p := range batch.Payloads {
			if err := validatePayload(p); err != nil {
				return fmt.Errorf("batches[%d].payloads[%d]: %w", i, j, err)
			}
		}
		if batch.Expect == nil {
			continue
		}
		if len(batch.Expect.Slots) > len(batch.Payloads) {
			return fmt.Errorf("batches[%d].expect: %d slot expectations for %d payloads",
				i, len(batch.Expect.Slots), len(batch.Payloads))
		}
		for j, se := range batch.Expect.Slots {
			if se.Output != nil && se.NoOutput {
				return fmt.Errorf("batches[%d].expect.slots[%d]: output and no_output are exclusive", i, j)
			}
		}
	}

	return nil
}

func validatePayload(p PayloadSpec) error {
	switch testutil.SinkMode(p.Sink) {
	case "", testutil.SinkAccept, testutil.SinkDecline, testutil.SinkFail:
	default:
		return fmt.Errorf("unknown sink %q (want accept, decline or fail)", p.Sink)
	}
	for _, n := range p.Chunks {
		if n < 0 {
			return fmt.Errorf("chunk sizes must be non-negative, got %d", n)
		}
	}
	if p.BufferSize < 0 {
		return fmt.Errorf("buffer_size must be non-negative, got %d", p.BufferSize)
	}
	return nil
}
