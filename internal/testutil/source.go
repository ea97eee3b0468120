package testutil

import (
	"encoding/binary"
	"sync"
)

// ChunkRequest is one NextChunk call seen by a ChunkSource.
type ChunkRequest struct {
	Name     string
	SizeHint uint64
}

// ChunkSource is an in-memory engine.InputSource.
//
// Each input name holds a list of chunks returned one per NextChunk call,
// followed by nil. Names never added complete immediately with no data.
type ChunkSource struct {
	mu       sync.Mutex
	chunks   map[string][][]byte
	pos      map[string]int
	fail     map[string]error
	requests []ChunkRequest
}

// NewChunkSource creates an empty source.
func NewChunkSource() *ChunkSource {
	return &ChunkSource{
		chunks: make(map[string][][]byte),
		pos:    make(map[string]int),
		fail:   make(map[string]error),
	}
}

// Add appends raw chunks for name. A nil chunk is stored as empty so it
// does not end the input early.
func (s *ChunkSource) Add(name string, chunks ...[]byte) *ChunkSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chunks {
		if c == nil {
			c = []byte{}
		}
		s.chunks[name] = append(s.chunks[name], c)
	}
	return s
}

// AddInt32s encodes values and adds them for name, split at the given
// chunk sizes in bytes. See SplitBytes.
func (s *ChunkSource) AddInt32s(name string, values []int32, split ...int) *ChunkSource {
	return s.Add(name, SplitBytes(EncodeInt32s(values), split)...)
}

// FailOn makes every NextChunk call for name return err.
func (s *ChunkSource) FailOn(name string, err error) *ChunkSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[name] = err
	return s
}

// NextChunk implements engine.InputSource.
func (s *ChunkSource) NextChunk(name string, sizeHint uint64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, ChunkRequest{Name: name, SizeHint: sizeHint})
	if err := s.fail[name]; err != nil {
		return nil, err
	}

	i := s.pos[name]
	if i >= len(s.chunks[name]) {
		return nil, nil
	}
	s.pos[name] = i + 1
	return s.chunks[name][i], nil
}

// Requests returns every NextChunk call in order.
func (s *ChunkSource) Requests() []ChunkRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ChunkRequest{}, s.requests...)
}

// EncodeInt32s returns values as little-endian bytes.
func EncodeInt32s(values []int32) []byte {
	b := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(b[4*i:], uint32(v))
	}
	return b
}

// SplitBytes cuts b into chunks of the given sizes. Bytes left over after
// the last size form one final chunk; sizes past the end of b are
// clamped. With no sizes, b is one chunk (or none if b is empty).
func SplitBytes(b []byte, sizes []int) [][]byte {
	var out [][]byte
	for _, n := range sizes {
		if n > len(b) {
			n = len(b)
		}
		out = append(out, b[:n:n])
		b = b[n:]
	}
	if len(b) > 0 {
		out = append(out, b)
	}
	return out
}
