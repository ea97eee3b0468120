package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/louyanyang/tensorrt-inference-server/internal/ir"
)

// CompileModel parses a CUE value into a ModelConfig.
// Uses the CUE SDK's Go API directly (not a CLI subprocess).
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`name: "m", max_batch_size: 4, ...`)
//	cfg, err := CompileModel(v)
func CompileModel(v cue.Value) (*ir.ModelConfig, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	cfg := &ir.ModelConfig{}

	if nameVal := v.LookupPath(cue.ParsePath("name")); nameVal.Exists() {
		name, err := nameVal.String()
		if err != nil {
			return nil, &CompileError{Field: "name", Message: "name must be a string", Pos: nameVal.Pos()}
		}
		cfg.Name = name
	}

	if mbsVal := v.LookupPath(cue.ParsePath("max_batch_size")); mbsVal.Exists() {
		mbs, err := extractInt(mbsVal, "max_batch_size")
		if err != nil {
			return nil, err
		}
		cfg.MaxBatchSize = int(mbs)
	}

	var err error
	cfg.Inputs, err = parseTensors(v, "input")
	if err != nil {
		return nil, err
	}
	cfg.Outputs, err = parseTensors(v, "output")
	if err != nil {
		return nil, err
	}

	cfg.SequenceBatching, err = parseSequenceBatching(v)
	if err != nil {
		return nil, err
	}

	cfg.Parameters, err = parseParameters(v)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// parseTensors extracts the input or output list. Absent lists are empty.
func parseTensors(v cue.Value, field string) ([]ir.TensorConfig, error) {
	listVal := v.LookupPath(cue.ParsePath(field))
	if !listVal.Exists() {
		return nil, nil
	}

	iter, err := listVal.List()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "must be a list of tensors", Pos: listVal.Pos()}
	}

	var tensors []ir.TensorConfig
	for i := 0; iter.Next(); i++ {
		tv := iter.Value()
		path := fmt.Sprintf("%s[%d]", field, i)

		nameVal := tv.LookupPath(cue.ParsePath("name"))
		if !nameVal.Exists() {
			return nil, &CompileError{Field: path + ".name", Message: "tensor name is required", Pos: tv.Pos()}
		}
		name, err := nameVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}

		dtVal := tv.LookupPath(cue.ParsePath("data_type"))
		if !dtVal.Exists() {
			return nil, &CompileError{Field: path + ".data_type", Message: "data_type is required", Pos: tv.Pos()}
		}
		dt, err := dtVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}

		dimsVal := tv.LookupPath(cue.ParsePath("dims"))
		if !dimsVal.Exists() {
			return nil, &CompileError{Field: path + ".dims", Message: "dims are required", Pos: tv.Pos()}
		}
		dimIter, err := dimsVal.List()
		if err != nil {
			return nil, &CompileError{Field: path + ".dims", Message: "dims must be a list of integers", Pos: dimsVal.Pos()}
		}
		dims := []int64{}
		for dimIter.Next() {
			d, err := extractInt(dimIter.Value(), path+".dims")
			if err != nil {
				return nil, err
			}
			dims = append(dims, d)
		}

		tensors = append(tensors, ir.TensorConfig{
			Name:     name,
			DataType: ir.DataType(dt),
			Dims:     dims,
		})
	}

	return tensors, nil
}

// parseSequenceBatching extracts the optional sequence batcher section.
func parseSequenceBatching(v cue.Value) (*ir.SequenceBatching, error) {
	sbVal := v.LookupPath(cue.ParsePath("sequence_batching"))
	if !sbVal.Exists() {
		return nil, nil
	}
	if sbVal.IncompleteKind() != cue.StructKind {
		return nil, &CompileError{Field: "sequence_batching", Message: "must be a struct", Pos: sbVal.Pos()}
	}

	sb := &ir.SequenceBatching{}

	if idleVal := sbVal.LookupPath(cue.ParsePath("max_sequence_idle_microseconds")); idleVal.Exists() {
		idle, err := extractInt(idleVal, "sequence_batching.max_sequence_idle_microseconds")
		if err != nil {
			return nil, err
		}
		sb.MaxSequenceIdleMicroseconds = idle
	}

	ciVal := sbVal.LookupPath(cue.ParsePath("control_input"))
	if !ciVal.Exists() {
		return sb, nil
	}
	iter, err := ciVal.List()
	if err != nil {
		return nil, &CompileError{Field: "sequence_batching.control_input", Message: "must be a list", Pos: ciVal.Pos()}
	}

	for i := 0; iter.Next(); i++ {
		cv := iter.Value()
		path := fmt.Sprintf("sequence_batching.control_input[%d]", i)

		nameVal := cv.LookupPath(cue.ParsePath("name"))
		if !nameVal.Exists() {
			return nil, &CompileError{Field: path + ".name", Message: "control input name is required", Pos: cv.Pos()}
		}
		name, err := nameVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}

		ci := ir.ControlInput{Name: name}
		if kindVal := cv.LookupPath(cue.ParsePath("kind")); kindVal.Exists() {
			kind, err := kindVal.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			ci.Kind = kind
		}
		sb.ControlInputs = append(sb.ControlInputs, ci)
	}

	return sb, nil
}

// parseParameters extracts string parameters.
// Both `key: "v"` and `key: {string_value: "v"}` are accepted.
func parseParameters(v cue.Value) (map[string]string, error) {
	paramsVal := v.LookupPath(cue.ParsePath("parameters"))
	if !paramsVal.Exists() {
		return nil, nil
	}

	iter, err := paramsVal.Fields()
	if err != nil {
		return nil, &CompileError{Field: "parameters", Message: "must be a struct", Pos: paramsVal.Pos()}
	}

	params := make(map[string]string)
	for iter.Next() {
		key := iter.Label()
		pv := iter.Value()

		if s, err := pv.String(); err == nil {
			params[key] = s
			continue
		}

		sv := pv.LookupPath(cue.ParsePath("string_value"))
		if !sv.Exists() {
			return nil, &CompileError{
				Field:   "parameters." + key,
				Message: "parameter must be a string or {string_value: string}",
				Pos:     pv.Pos(),
			}
		}
		s, err := sv.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		params[key] = s
	}

	return params, nil
}

// extractInt reads an integer. Floats are rejected; there are no
// fractional quantities in a model configuration.
func extractInt(v cue.Value, field string) (int64, error) {
	switch v.IncompleteKind() {
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return 0, formatCUEError(err)
		}
		return n, nil
	case cue.FloatKind, cue.NumberKind:
		return 0, &CompileError{Field: field, Message: "float values are forbidden - use an integer", Pos: v.Pos()}
	default:
		return 0, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("expected integer, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
