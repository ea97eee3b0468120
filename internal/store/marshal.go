package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/louyanyang/tensorrt-inference-server/internal/ir"
)

// marshalStep converts decoded step inputs to canonical JSON TEXT.
// A nil step is stored as NULL.
func marshalStep(step *ir.StepInput) (sql.NullString, error) {
	if step == nil {
		return sql.NullString{}, nil
	}
	input := step.Input
	if input == nil {
		input = []int32{}
	}
	data, err := ir.MarshalCanonical(map[string]any{
		"start": step.Start,
		"ready": step.Ready,
		"input": input,
	})
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal step: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// unmarshalStep parses a stored step. NULL yields nil.
func unmarshalStep(data sql.NullString) (*ir.StepInput, error) {
	if !data.Valid {
		return nil, nil
	}
	var step ir.StepInput
	if err := json.Unmarshal([]byte(data.String), &step); err != nil {
		return nil, fmt.Errorf("unmarshal step: %w", err)
	}
	if step.Input == nil {
		step.Input = []int32{}
	}
	return &step, nil
}

// marshalValues converts a slot snapshot to canonical JSON TEXT.
func marshalValues(values []int32) (string, error) {
	if values == nil {
		values = []int32{}
	}
	data, err := ir.MarshalCanonical(values)
	if err != nil {
		return "", fmt.Errorf("marshal accumulators: %w", err)
	}
	return string(data), nil
}

// unmarshalValues parses a stored slot snapshot.
func unmarshalValues(data string) ([]int32, error) {
	values := []int32{}
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil, fmt.Errorf("unmarshal accumulators: %w", err)
	}
	return values, nil
}
