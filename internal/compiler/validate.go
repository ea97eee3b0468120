package compiler

import (
	"fmt"
	"strings"

	"github.com/louyanyang/tensorrt-inference-server/internal/ir"
)

// Validation error codes (E200-E299)
const (
	ErrModelNameEmpty       = "E201" // name is required
	ErrNegativeBatchSize    = "E202" // max_batch_size must be >= 0
	ErrTensorNameEmpty      = "E203" // tensor name is required
	ErrDuplicateTensorName  = "E204" // duplicate input/output name
	ErrUnknownDataType      = "E205" // data_type is not a known TYPE_*
	ErrInvalidDims          = "E206" // dims empty or contain values < -1 or 0
	ErrInvalidControlInput  = "E207" // control input name empty or duplicated
	ErrEmptyParameterKey    = "E208" // parameter key is empty
	ErrNegativeIdleDuration = "E209" // max_sequence_idle_microseconds < 0
)

// ValidationError represents a descriptor schema violation.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled configuration against the descriptor schema.
// Returns all errors found (does not fail-fast).
func Validate(cfg *ir.ModelConfig) []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(cfg.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "model name is required and must be non-empty",
			Code:    ErrModelNameEmpty,
		})
	}

	if cfg.MaxBatchSize < 0 {
		errs = append(errs, ValidationError{
			Field:   "max_batch_size",
			Message: fmt.Sprintf("max_batch_size must be non-negative, got %d", cfg.MaxBatchSize),
			Code:    ErrNegativeBatchSize,
		})
	}

	errs = append(errs, validateTensors("input", cfg.Inputs)...)
	errs = append(errs, validateTensors("output", cfg.Outputs)...)

	if sb := cfg.SequenceBatching; sb != nil {
		if sb.MaxSequenceIdleMicroseconds < 0 {
			errs = append(errs, ValidationError{
				Field:   "sequence_batching.max_sequence_idle_microseconds",
				Message: "idle duration must be non-negative",
				Code:    ErrNegativeIdleDuration,
			})
		}

		seen := make(map[string]bool)
		for i, ci := range sb.ControlInputs {
			field := fmt.Sprintf("sequence_batching.control_input[%d].name", i)
			if strings.TrimSpace(ci.Name) == "" {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: "control input name is required",
					Code:    ErrInvalidControlInput,
				})
				continue
			}
			if seen[ci.Name] {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("duplicate control input name: %q", ci.Name),
					Code:    ErrInvalidControlInput,
				})
			}
			seen[ci.Name] = true
		}
	}

	for key := range cfg.Parameters {
		if strings.TrimSpace(key) == "" {
			errs = append(errs, ValidationError{
				Field:   "parameters",
				Message: "parameter keys must be non-empty",
				Code:    ErrEmptyParameterKey,
			})
		}
	}

	return errs
}

// validateTensors checks one tensor list (inputs or outputs).
func validateTensors(kind string, tensors []ir.TensorConfig) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool)

	for i, t := range tensors {
		prefix := fmt.Sprintf("%s[%d]", kind, i)

		if strings.TrimSpace(t.Name) == "" {
			errs = append(errs, ValidationError{
				Field:   prefix + ".name",
				Message: "tensor name is required",
				Code:    ErrTensorNameEmpty,
			})
		} else {
			if seen[t.Name] {
				errs = append(errs, ValidationError{
					Field:   prefix + ".name",
					Message: fmt.Sprintf("duplicate %s name: %q", kind, t.Name),
					Code:    ErrDuplicateTensorName,
				})
			}
			seen[t.Name] = true
		}

		if !t.DataType.Valid() {
			errs = append(errs, ValidationError{
				Field:   prefix + ".data_type",
				Message: fmt.Sprintf("unknown data type %q", t.DataType),
				Code:    ErrUnknownDataType,
			})
		}

		if len(t.Dims) == 0 {
			errs = append(errs, ValidationError{
				Field:   prefix + ".dims",
				Message: "at least one dimension is required",
				Code:    ErrInvalidDims,
			})
		}
		for j, d := range t.Dims {
			if d == 0 || d < ir.WildcardDim {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.dims[%d]", prefix, j),
					Message: fmt.Sprintf("dimension must be positive or -1, got %d", d),
					Code:    ErrInvalidDims,
				})
			}
		}
	}

	return errs
}
