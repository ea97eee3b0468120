package engine

import (
	"encoding/binary"
	"log/slog"
	"math"
)

// InputSource delivers the bytes of one payload's inputs in chunks.
//
// NextChunk returns the next chunk for name. A nil chunk with a nil error
// means the input is complete. sizeHint is the number of bytes still
// expected; sources may ignore it. Each call may return a chunk of any
// size, and the source may be asked for several names in turn.
type InputSource interface {
	NextChunk(name string, sizeHint uint64) ([]byte, error)
}

// Assemble pulls every chunk of name from src into one contiguous buffer.
//
// The total must equal expected exactly: a chunk that would push the total
// past expected fails with SIZE_EXCEEDED before it is copied, and a source
// that finishes short fails with SIZE_MISMATCH. A failing source is
// SOURCE_READ_ERROR. Returned errors are *Error with Slot -1.
func Assemble(src InputSource, name string, expected uint64, logger *slog.Logger) ([]byte, error) {
	if src == nil {
		return nil, &Error{Code: ErrCodeSourceRead, Message: "no input source", Slot: -1, Input: name}
	}

	buf := make([]byte, 0, min(expected, maxPrealloc))
	var total uint64
	for {
		chunk, err := src.NextChunk(name, expected-total)
		if err != nil {
			return nil, &Error{Code: ErrCodeSourceRead, Message: "unable to get input tensor values", Slot: -1, Input: name, Err: err}
		}
		if chunk == nil {
			break
		}

		if logger != nil {
			logger.Debug("input chunk", "input", name, "bytes", len(chunk))
		}

		total += uint64(len(chunk))
		if total > expected {
			return nil, &Error{
				Code:    ErrCodeSizeExceeded,
				Message: "input tensor larger than expected",
				Slot:    -1,
				Input:   name,
			}
		}
		buf = append(buf, chunk...)
	}

	if total != expected {
		return nil, &Error{
			Code:    ErrCodeSizeMismatch,
			Message: "unexpected size for input tensor",
			Slot:    -1,
			Input:   name,
		}
	}
	return buf, nil
}

// decodeInt32s reads little-endian int32 elements. len(b) is a multiple
// of 4 once Assemble has succeeded.
func decodeInt32s(b []byte) []int32 {
	out := make([]int32, len(b)/int32Size)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(b[i*int32Size:]))
	}
	return out
}

// decodeScalar reads element 0 of a control input.
func decodeScalar(b []byte) int32 {
	return int32(binary.LittleEndian.Uint32(b))
}

const int32Size = 4

// maxInputElements keeps the INPUT byte size within int64.
const maxInputElements = math.MaxInt64 / int32Size

// maxPrealloc bounds the buffer reserved up front; larger inputs grow as
// chunks arrive.
const maxPrealloc = 64 << 10
