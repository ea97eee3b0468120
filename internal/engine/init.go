package engine

import (
	"fmt"

	"github.com/louyanyang/tensorrt-inference-server/internal/ir"
)

// Tensor names the engine requires in its model configuration.
const (
	ControlStart = "START"
	ControlReady = "READY"
	InputName    = "INPUT"
	OutputName   = "OUTPUT"
)

// NoGPU is the device affinity of a host-only instance.
const NoGPU = -1

// Init checks that the configuration describes a sequence accumulator
// and allocates the accumulator store. Checks run in a fixed order and
// the first failure is returned:
//
//  1. device must be NoGPU
//  2. sequence batching with exactly the controls START and READY
//  3. one rank-1 TYPE_INT32 input named INPUT
//  4. one rank-1 TYPE_INT32 output named OUTPUT with the input's dim
//
// Calling Init again after success re-runs the checks and keeps the
// accumulator values.
func (e *Engine) Init() error {
	if err := checkConfig(e.cfg, e.device); err != nil {
		e.logger.Warn("init failed", "model", e.name, "code", err.Code, "error", err.Message)
		return err
	}
	if e.acc != nil {
		return nil
	}

	acc := NewAccumulators(e.cfg.MaxBatchSize)
	if e.initial != nil {
		if err := acc.Restore(e.initial); err != nil {
			return fmt.Errorf("restore accumulators: %w", err)
		}
	}
	e.acc = acc

	e.logger.Debug("instance initialized",
		"model", e.name,
		"instance", e.instanceID,
		"slots", acc.Len(),
		"delay", e.delay,
	)
	return nil
}

func checkConfig(cfg *ir.ModelConfig, device int) *Error {
	if device != NoGPU {
		return newError(ErrCodeUnsupportedDevice, "GPU execution not supported (device %d)", device)
	}

	sb := cfg.SequenceBatching
	if sb == nil {
		return newError(ErrCodeInvalidControlConfig, "model configuration must configure sequence batcher")
	}
	if len(sb.ControlInputs) != 2 {
		return newError(ErrCodeInvalidControlConfig,
			"model configuration must have exactly 2 control inputs, got %d", len(sb.ControlInputs))
	}
	first, second := sb.ControlInputs[0].Name, sb.ControlInputs[1].Name
	if !(first == ControlStart && second == ControlReady) && !(first == ControlReady && second == ControlStart) {
		return newError(ErrCodeInvalidControlConfig,
			"model configuration must have control inputs 'START' and 'READY', got %q and %q", first, second)
	}

	if len(cfg.Inputs) != 1 || len(cfg.Inputs[0].Dims) != 1 {
		return newError(ErrCodeInvalidInputShape, "model must have input 'INPUT' with vector shape, any length")
	}
	in := cfg.Inputs[0]
	if in.DataType != ir.TypeInt32 {
		return newError(ErrCodeInvalidDataType, "model input must have TYPE_INT32 data-type, got %s", in.DataType)
	}
	if in.Name != InputName {
		return newError(ErrCodeInvalidInputName, "model input must be named 'INPUT', got %q", in.Name)
	}

	if len(cfg.Outputs) != 1 || len(cfg.Outputs[0].Dims) != 1 || cfg.Outputs[0].Dims[0] != in.Dims[0] {
		return newError(ErrCodeInvalidOutputShape, "model must have output 'OUTPUT' with shape matching 'INPUT'")
	}
	out := cfg.Outputs[0]
	if out.DataType != ir.TypeInt32 {
		return newError(ErrCodeInvalidDataType, "model output must have TYPE_INT32 data-type, got %s", out.DataType)
	}
	if out.Name != OutputName {
		return newError(ErrCodeInvalidOutputName, "model output must be named 'OUTPUT', got %q", out.Name)
	}

	return nil
}
