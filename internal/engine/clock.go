package engine

import "sync/atomic"

// SeqClock stamps each executed batch with its seq. Next is called once
// per batch that passes the batch-level checks; Current is the seq of the
// last such batch, 0 before the first.
type SeqClock interface {
	Next() int64
	Current() int64
}

// Clock is the default SeqClock. It is atomic so Seq can be read while
// Execute runs on another goroutine.
type Clock struct {
	last atomic.Int64
}

// NewClock returns a clock whose first batch is seq 1.
func NewClock() *Clock {
	return &Clock{}
}

// ResumeClock returns a clock that continues after lastSeq, the highest
// seq already journaled for an instance.
func ResumeClock(lastSeq int64) *Clock {
	c := &Clock{}
	c.last.Store(lastSeq)
	return c
}

func (c *Clock) Next() int64    { return c.last.Add(1) }
func (c *Clock) Current() int64 { return c.last.Load() }
