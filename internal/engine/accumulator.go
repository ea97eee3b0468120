package engine

import "fmt"

// Accumulators is the per-slot state of one engine instance.
//
// Slot i belongs to the sequence delivered at batch position i. Values
// persist across Execute calls and are only changed by Step.
type Accumulators struct {
	values []int32
}

// NewAccumulators allocates size zeroed slots. At least one slot is
// always allocated, so a non-batching model still has a sequence.
func NewAccumulators(size int) *Accumulators {
	return &Accumulators{values: make([]int32, max(1, size))}
}

// Len returns the number of slots.
func (a *Accumulators) Len() int {
	return len(a.values)
}

// Get returns the value held by slot.
func (a *Accumulators) Get(slot int) int32 {
	return a.values[slot]
}

// Snapshot returns a copy of all slot values.
func (a *Accumulators) Snapshot() []int32 {
	out := make([]int32, len(a.values))
	copy(out, a.values)
	return out
}

// Restore loads a checkpoint. Slots past len(values) are zeroed.
func (a *Accumulators) Restore(values []int32) error {
	if len(values) > len(a.values) {
		return fmt.Errorf("checkpoint has %d slots, instance has %d", len(values), len(a.values))
	}
	clear(a.values)
	copy(a.values, values)
	return nil
}

// Step applies one timestep to slot and returns the new value.
// emit is false when ready is zero; the slot is then left untouched.
func (a *Accumulators) Step(slot int, start, ready int32, input []int32) (value int32, emit bool) {
	value, emit = ApplyStep(a.values[slot], start, ready, input)
	a.values[slot] = value
	return value, emit
}

// ApplyStep is the transition rule for one sequence:
//
//	ready == 0              -> prev, no output
//	ready != 0, start != 0  -> sum(input)
//	ready != 0, start == 0  -> prev + sum(input)
//
// Arithmetic wraps on int32 overflow.
func ApplyStep(prev, start, ready int32, input []int32) (int32, bool) {
	if ready == 0 {
		return prev, false
	}
	var sum int32
	for _, v := range input {
		sum += v
	}
	if start != 0 {
		return sum, true
	}
	return prev + sum, true
}
