package testutil

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// SinkMode selects how a RecordingSink answers buffer requests.
type SinkMode string

const (
	SinkAccept  SinkMode = "accept"  // hand out a buffer
	SinkDecline SinkMode = "decline" // nil buffer, no error
	SinkFail    SinkMode = "fail"    // error
)

// ErrSinkFailed is returned by a RecordingSink in SinkFail mode.
var ErrSinkFailed = errors.New("output buffer unavailable")

// OutputRequest is one OutputBuffer call seen by a RecordingSink.
type OutputRequest struct {
	Name        string
	Shape       []int64
	ElementSize int
}

// RecordingSink is an in-memory engine.OutputSink that records every
// request and keeps the buffers it handed out.
type RecordingSink struct {
	mu       sync.Mutex
	mode     SinkMode
	size     int
	requests []OutputRequest
	buffers  map[string][]byte
}

// NewRecordingSink creates a sink in the given mode. An empty mode is
// SinkAccept.
func NewRecordingSink(mode SinkMode) *RecordingSink {
	if mode == "" {
		mode = SinkAccept
	}
	return &RecordingSink{mode: mode, buffers: make(map[string][]byte)}
}

// WithBufferSize makes accepted buffers n bytes instead of one element.
func (s *RecordingSink) WithBufferSize(n int) *RecordingSink {
	s.size = n
	return s
}

// OutputBuffer implements engine.OutputSink.
func (s *RecordingSink) OutputBuffer(name string, shape []int64, elementSize int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, OutputRequest{Name: name, Shape: slices.Clone(shape), ElementSize: elementSize})

	switch s.mode {
	case SinkDecline:
		return nil, nil
	case SinkFail:
		return nil, ErrSinkFailed
	case SinkAccept:
		n := elementSize
		if s.size > 0 {
			n = s.size
		}
		buf := make([]byte, n)
		s.buffers[name] = buf
		return buf, nil
	default:
		return nil, fmt.Errorf("unknown sink mode %q", s.mode)
	}
}

// Requests returns every OutputBuffer call in order.
func (s *RecordingSink) Requests() []OutputRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]OutputRequest{}, s.requests...)
}

// Int32 decodes the first element written to the named buffer. ok is
// false when no buffer was handed out or it is shorter than 4 bytes.
func (s *RecordingSink) Int32(name string) (v int32, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf, found := s.buffers[name]
	if !found || len(buf) < 4 {
		return 0, false
	}
	return int32(binary.LittleEndian.Uint32(buf)), true
}
