package ir

// StepInput is the decoded input of one processed timestep.
type StepInput struct {
	Start int32   `json:"start"`
	Ready int32   `json:"ready"`
	Input []int32 `json:"input"`
}

// SlotRecord is the journal entry for one payload of a batch.
//
// Step is nil when the slot failed before its inputs were decoded.
// Emitted is set when the step produced a value; Written when that value
// was copied into a caller buffer. Accumulator always holds the slot's
// value after the batch.
type SlotRecord struct {
	Slot        int        `json:"slot"`
	ErrorCode   string     `json:"error_code,omitempty"`
	Step        *StepInput `json:"step,omitempty"`
	Emitted     bool       `json:"emitted"`
	Written     bool       `json:"written"`
	Output      int32      `json:"output"`
	Accumulator int32      `json:"accumulator"`
}

// ExecutionRecord is the journal entry for one Execute call.
type ExecutionRecord struct {
	ID            string       `json:"id"` // Content-addressed hash
	InstanceID    string       `json:"instance_id"`
	ModelName     string       `json:"model_name"`
	Seq           int64        `json:"seq"` // Logical clock
	PayloadCount  int          `json:"payload_count"`
	ConfigHash    string       `json:"config_hash"`
	EngineVersion string       `json:"engine_version"`
	Slots         []SlotRecord `json:"slots"`
	Accumulators  []int32      `json:"accumulators"` // All slots after the batch
}
