package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/louyanyang/tensorrt-inference-server/internal/store"
)

// Assertion type constants.
const (
	AssertInitError    = "init_error"
	AssertBatchError   = "batch_error"
	AssertSlotCount    = "slot_count"
	AssertSlotError    = "slot_error"
	AssertSlotOutput   = "slot_output"
	AssertNoOutput     = "no_output"
	AssertAccumulator  = "slot_accumulator"
	AssertAccumulators = "final_accumulators"
	AssertSinkValue    = "sink_value"
	AssertReplay       = "replay"
)

// AssertionError is returned when an assertion fails.
// It includes enough context to locate the failing batch and slot.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Batch    int    // -1 for scenario-level checks
	Slot     int    // -1 for batch-level checks
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "%s failed", e.Type)
	if e.Batch >= 0 {
		fmt.Fprintf(&buf, " at batch %d", e.Batch)
	}
	if e.Slot >= 0 {
		fmt.Fprintf(&buf, " slot %d", e.Slot)
	}
	fmt.Fprintf(&buf, ": expected %s, actual %s", e.Expected, e.Actual)
	return buf.String()
}

// assertInitError compares the Init outcome with the expected code.
func assertInitError(expected, actual string) error {
	if expected == actual {
		return nil
	}
	return &AssertionError{
		Type:     AssertInitError,
		Batch:    -1,
		Slot:     -1,
		Expected: codeOrNone(expected),
		Actual:   codeOrNone(actual),
	}
}

// assertBatch checks one batch trace against its expectation.
// A nil expectation checks nothing.
func assertBatch(expect *BatchExpect, trace BatchTrace) []error {
	if expect == nil {
		return nil
	}

	var errs []error
	if expect.Error != trace.Error {
		errs = append(errs, &AssertionError{
			Type:     AssertBatchError,
			Batch:    trace.Batch,
			Slot:     -1,
			Expected: codeOrNone(expect.Error),
			Actual:   codeOrNone(trace.Error),
		})
	}

	for i, se := range expect.Slots {
		if i >= len(trace.Slots) {
			errs = append(errs, &AssertionError{
				Type:     AssertSlotCount,
				Batch:    trace.Batch,
				Slot:     i,
				Expected: "a slot result",
				Actual:   fmt.Sprintf("%d slot results", len(trace.Slots)),
			})
			break
		}
		errs = append(errs, assertSlot(trace.Batch, se, trace.Slots[i])...)
	}

	return errs
}

func assertSlot(batch int, expect SlotExpect, slot SlotTrace) []error {
	var errs []error
	fail := func(kind, expected, actual string) {
		errs = append(errs, &AssertionError{
			Type:     kind,
			Batch:    batch,
			Slot:     slot.Slot,
			Expected: expected,
			Actual:   actual,
		})
	}

	if expect.Error != slot.Error {
		fail(AssertSlotError, codeOrNone(expect.Error), codeOrNone(slot.Error))
	}

	switch {
	case expect.Output != nil && !slot.Written:
		fail(AssertSlotOutput, fmt.Sprintf("output %d", *expect.Output), "nothing written")
	case expect.Output != nil && slot.Output != *expect.Output:
		fail(AssertSlotOutput, fmt.Sprintf("output %d", *expect.Output), fmt.Sprintf("output %d", slot.Output))
	case expect.NoOutput && slot.Written:
		fail(AssertNoOutput, "nothing written", fmt.Sprintf("output %d", slot.Output))
	}

	if expect.Accumulator != nil && slot.Accumulator != *expect.Accumulator {
		fail(AssertAccumulator, fmt.Sprint(*expect.Accumulator), fmt.Sprint(slot.Accumulator))
	}

	return errs
}

// assertAccumulators compares the final slot values. A nil expectation
// checks nothing.
func assertAccumulators(expected, actual []int32) error {
	if expected == nil || slices.Equal(expected, actual) {
		return nil
	}
	return &AssertionError{
		Type:     AssertAccumulators,
		Batch:    -1,
		Slot:     -1,
		Expected: fmt.Sprint(expected),
		Actual:   fmt.Sprint(actual),
	}
}

// assertReplay turns replay mismatches into assertion errors.
func assertReplay(report *store.ReplayReport) []error {
	var errs []error
	for _, m := range report.Mismatches {
		errs = append(errs, &AssertionError{
			Type:     AssertReplay,
			Batch:    -1,
			Slot:     m.Slot,
			Expected: fmt.Sprintf("journaled %s %d at seq %d", m.Field, m.Recorded, m.Seq),
			Actual:   fmt.Sprintf("replayed %d", m.Replayed),
		})
	}
	return errs
}

func codeOrNone(code string) string {
	if code == "" {
		return "no error"
	}
	return code
}
