package engine

import (
	"errors"
	"fmt"
)

// Error is a failure reported by Init, Execute, or on a single payload.
//
// Error carries structured fields so hosts can report the failing slot
// and input without parsing messages.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Slot is the batch position of the failing payload, or -1.
	Slot int

	// Input names the tensor being assembled, if any.
	Input string

	// Err is the underlying cause (e.g. a source read failure).
	Err error
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeUnsupportedDevice indicates a GPU device was requested.
	ErrCodeUnsupportedDevice ErrorCode = "UNSUPPORTED_DEVICE"

	// ErrCodeInvalidControlConfig indicates missing sequence batching or
	// control inputs other than START and READY.
	ErrCodeInvalidControlConfig ErrorCode = "INVALID_CONTROL_CONFIG"

	// ErrCodeInvalidInputShape indicates input count or rank other than 1.
	ErrCodeInvalidInputShape ErrorCode = "INVALID_INPUT_SHAPE"

	// ErrCodeInvalidDataType indicates a tensor that is not TYPE_INT32.
	ErrCodeInvalidDataType ErrorCode = "INVALID_DATA_TYPE"

	// ErrCodeInvalidInputName indicates the input is not named INPUT.
	ErrCodeInvalidInputName ErrorCode = "INVALID_INPUT_NAME"

	// ErrCodeInvalidOutputShape indicates output count, rank, or dim
	// not matching the input.
	ErrCodeInvalidOutputShape ErrorCode = "INVALID_OUTPUT_SHAPE"

	// ErrCodeInvalidOutputName indicates the output is not named OUTPUT.
	ErrCodeInvalidOutputName ErrorCode = "INVALID_OUTPUT_NAME"

	// ErrCodeBatchTooLarge indicates more payloads than accumulator slots.
	ErrCodeBatchTooLarge ErrorCode = "BATCH_TOO_LARGE"

	// ErrCodeMultiTimestep indicates a payload with batch size other than 1.
	ErrCodeMultiTimestep ErrorCode = "MULTI_TIMESTEP_UNSUPPORTED"

	// ErrCodeSizeMismatch indicates the source finished short of the
	// expected byte count.
	ErrCodeSizeMismatch ErrorCode = "SIZE_MISMATCH"

	// ErrCodeSizeExceeded indicates a chunk pushed the total past the
	// expected byte count.
	ErrCodeSizeExceeded ErrorCode = "SIZE_EXCEEDED"

	// ErrCodeSourceRead indicates the input source itself failed.
	ErrCodeSourceRead ErrorCode = "SOURCE_READ_ERROR"

	// ErrCodeOutputBuffer indicates the output sink failed or returned a
	// buffer too small for one element.
	ErrCodeOutputBuffer ErrorCode = "OUTPUT_BUFFER_UNAVAILABLE"

	// ErrCodeNotInitialized indicates Execute before a successful Init.
	ErrCodeNotInitialized ErrorCode = "NOT_INITIALIZED"
)

// Scope tells how far an error reaches.
type Scope int

const (
	ScopeUnknown Scope = iota
	ScopeInit          // instance unusable
	ScopeBatch         // whole Execute call rejected, no slot touched
	ScopeSlot          // one payload failed, the rest of the batch proceeded
)

func (s Scope) String() string {
	switch s {
	case ScopeInit:
		return "init"
	case ScopeBatch:
		return "batch"
	case ScopeSlot:
		return "slot"
	default:
		return "unknown"
	}
}

// Scope classifies the code.
func (c ErrorCode) Scope() Scope {
	switch c {
	case ErrCodeUnsupportedDevice, ErrCodeInvalidControlConfig,
		ErrCodeInvalidInputShape, ErrCodeInvalidDataType, ErrCodeInvalidInputName,
		ErrCodeInvalidOutputShape, ErrCodeInvalidOutputName:
		return ScopeInit
	case ErrCodeBatchTooLarge, ErrCodeNotInitialized:
		return ScopeBatch
	case ErrCodeMultiTimestep, ErrCodeSizeMismatch, ErrCodeSizeExceeded,
		ErrCodeSourceRead, ErrCodeOutputBuffer:
		return ScopeSlot
	default:
		return ScopeUnknown
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Slot >= 0 && e.Input != "" {
		msg = fmt.Sprintf("%s (slot=%d, input=%s)", msg, e.Slot, e.Input)
	} else if e.Slot >= 0 {
		msg = fmt.Sprintf("%s (slot=%d)", msg, e.Slot)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the ErrorCode of err, or "" if err is not an *Error.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err is an *Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

func newError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Slot: -1}
}

// slotError builds a per-payload error. A nil *Error is never returned.
func slotError(slot int, code ErrorCode, input string, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Slot:    slot,
		Input:   input,
		Err:     cause,
	}
}
