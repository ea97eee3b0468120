package testutil

import "sync"

// DeterministicClock is an engine.SeqClock for tests that also remembers
// every seq it handed out, so a test can see which Execute calls got past
// the batch-level checks.
type DeterministicClock struct {
	mu      sync.Mutex
	last    int64
	stamped []int64
}

// NewDeterministicClock returns a clock whose first Next is 1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

// NewDeterministicClockAt returns a clock whose first Next is last+1.
func NewDeterministicClockAt(last int64) *DeterministicClock {
	return &DeterministicClock{last: last}
}

func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last++
	c.stamped = append(c.stamped, c.last)
	return c.last
}

func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Stamped returns the seqs handed out so far, in order.
func (c *DeterministicClock) Stamped() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int64(nil), c.stamped...)
}
