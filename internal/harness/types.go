package harness

import (
	"time"

	"github.com/louyanyang/tensorrt-inference-server/internal/ir"
)

// SlotTrace is the observed outcome of one payload.
type SlotTrace struct {
	Slot        int           `json:"slot"`
	Error       string        `json:"error,omitempty"`
	Step        *ir.StepInput `json:"step,omitempty"`
	Emitted     bool          `json:"emitted"`
	Written     bool          `json:"written"`
	Output      int32         `json:"output"`
	Accumulator int32         `json:"accumulator"`

	// OutputShape is the shape the engine requested from the sink, nil
	// when no buffer was requested.
	OutputShape []int64 `json:"output_shape,omitempty"`

	sinkMismatch string // set when the sink does not hold Output
}

// BatchTrace is the observed outcome of one Execute call.
type BatchTrace struct {
	Batch int         `json:"batch"`
	Seq   int64       `json:"seq"` // 0 when the batch was rejected
	Error string      `json:"error,omitempty"`
	Slots []SlotTrace `json:"slots"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expectation and built-in check holds.
	Pass bool `json:"pass"`

	InstanceID string `json:"instance_id"`

	// InitError is the code of a failed Init, empty on success.
	InitError string `json:"init_error,omitempty"`

	// Batches holds one trace per executed batch, in order.
	Batches []BatchTrace `json:"batches"`

	// Accumulators are the slot values after the last batch, nil when
	// Init failed.
	Accumulators []int32 `json:"accumulators,omitempty"`

	// Slept is the total execution delay the engine requested.
	Slept time.Duration `json:"slept"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Batches: []BatchTrace{},
		Errors:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddBatch appends a batch trace.
func (r *Result) AddBatch(trace BatchTrace) {
	r.Batches = append(r.Batches, trace)
}
