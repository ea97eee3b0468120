// Package compiler turns CUE model configurations into ir.ModelConfig
// descriptors.
//
// A model configuration is a CUE file (or a directory of CUE files forming one
// package) with the following top-level fields:
//
//	name:           "simple_sequence"
//	max_batch_size: 4
//	sequence_batching: {
//		control_input: [
//			{name: "START", kind: "CONTROL_SEQUENCE_START"},
//			{name: "READY", kind: "CONTROL_SEQUENCE_READY"},
//		]
//	}
//	input: [{name: "INPUT", data_type: "TYPE_INT32", dims: [-1]}]
//	output: [{name: "OUTPUT", data_type: "TYPE_INT32", dims: [-1]}]
//	parameters: {execute_delay_ms: "10"}
//
// Parameters may be written either as plain strings or as
// {string_value: "..."} structs.
//
// Compilation is fail-fast and reports CUE source positions. Validate then
// performs collect-all descriptor checks on the compiled configuration.
// Whether a descriptor suits a particular backend is decided by that
// backend's own initialization, not here.
package compiler
