// Package harness runs scenario files against the sequence engine.
//
// A scenario compiles one model configuration, creates an engine instance
// with deterministic helpers, executes a list of batches built from
// in-memory input sources and output sinks, and checks the outcome of
// every batch and slot against the scenario's expectations.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	model: ../models/simple_sequence  # CUE directory or file, relative to the scenario
//	device: -1                        # optional, default NoGPU
//	instance_id: seq-1                # optional, default "scenario-<name>"
//	initial_accumulators: [5]         # optional checkpoint to restore
//	init_error: INVALID_INPUT_SHAPE   # optional expected Init failure
//	batches:
//	  - payloads:
//	      - start: 1
//	        ready: 1
//	        input: [1, 2, 3]
//	        chunks: [4, 4]          # byte split of INPUT
//	        declared_elements: 3    # overrides len(input)
//	        batch_size: 1
//	        outputs: [OUTPUT]       # [] requests no output
//	        omit: [START]           # inputs the source never delivers
//	        source_fail: READY      # input whose reads fail
//	        sink: accept            # accept | decline | fail
//	        buffer_size: 2          # bytes per accepted buffer
//	    expect:
//	      error: ""                 # batch-level error code
//	      slots:
//	        - output: 6
//	        - error: SIZE_MISMATCH
//	        - no_output: true
//	accumulators: [6, 0]              # expected final slot values
//
// # Checks
//
// Besides the scenario's own expectations, every run checks that the
// value found in each written sink buffer equals the engine's output and
// that replaying the instance's journal reproduces every slot.
//
// # Golden Traces
//
// RunWithGolden serializes the trace as canonical JSON and compares it
// with testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
