package ir

import "fmt"

// DataType is a tensor element type as named in the model configuration.
type DataType string

const (
	TypeInvalid DataType = "TYPE_INVALID"
	TypeBool    DataType = "TYPE_BOOL"
	TypeUint8   DataType = "TYPE_UINT8"
	TypeUint16  DataType = "TYPE_UINT16"
	TypeUint32  DataType = "TYPE_UINT32"
	TypeUint64  DataType = "TYPE_UINT64"
	TypeInt8    DataType = "TYPE_INT8"
	TypeInt16   DataType = "TYPE_INT16"
	TypeInt32   DataType = "TYPE_INT32"
	TypeInt64   DataType = "TYPE_INT64"
	TypeFP16    DataType = "TYPE_FP16"
	TypeFP32    DataType = "TYPE_FP32"
	TypeFP64    DataType = "TYPE_FP64"
	TypeString  DataType = "TYPE_STRING"
)

var byteSizes = map[DataType]int{
	TypeBool:   1,
	TypeUint8:  1,
	TypeUint16: 2,
	TypeUint32: 4,
	TypeUint64: 8,
	TypeInt8:   1,
	TypeInt16:  2,
	TypeInt32:  4,
	TypeInt64:  8,
	TypeFP16:   2,
	TypeFP32:   4,
	TypeFP64:   8,
}

// ByteSize returns the width of one element, or 0 for variable-width and
// unknown types.
func (d DataType) ByteSize() int {
	return byteSizes[d]
}

// Valid reports whether d names a known data type.
func (d DataType) Valid() bool {
	_, ok := byteSizes[d]
	return ok || d == TypeString
}

// WildcardDim marks a dimension whose length is only known per request.
const WildcardDim int64 = -1

// TensorConfig describes one model input or output.
type TensorConfig struct {
	Name     string   `json:"name"`
	DataType DataType `json:"data_type"`
	Dims     []int64  `json:"dims"`
}

// ControlInput names a tensor the sequence batcher fills with control
// values (sequence start, ready, ...).
type ControlInput struct {
	Name string `json:"name"`
	Kind string `json:"kind,omitempty"`
}

// SequenceBatching is present when the model uses the sequence batcher.
type SequenceBatching struct {
	MaxSequenceIdleMicroseconds int64          `json:"max_sequence_idle_microseconds,omitempty"`
	ControlInputs               []ControlInput `json:"control_input"`
}

// ModelConfig is the compiled model configuration descriptor.
// Immutable once handed to an engine.
type ModelConfig struct {
	Name             string            `json:"name"`
	MaxBatchSize     int               `json:"max_batch_size"`
	Inputs           []TensorConfig    `json:"input"`
	Outputs          []TensorConfig    `json:"output"`
	SequenceBatching *SequenceBatching `json:"sequence_batching,omitempty"`
	Parameters       map[string]string `json:"parameters,omitempty"`
}

// Parameter returns a string parameter and whether it was set.
func (c *ModelConfig) Parameter(key string) (string, bool) {
	if c.Parameters == nil {
		return "", false
	}
	v, ok := c.Parameters[key]
	return v, ok
}

// Batching reports whether the model supports batching. A max_batch_size of
// 0 marks a non-batching model.
func (c *ModelConfig) Batching() bool {
	return c.MaxBatchSize != 0
}

// ShapeString renders dims the way the configuration language does.
func ShapeString(dims []int64) string {
	s := "["
	for i, d := range dims {
		if i > 0 {
			s += ","
		}
		s += fmt.Sprintf(" %d", d)
	}
	return s + " ]"
}
