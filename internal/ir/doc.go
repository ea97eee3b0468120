// Package ir provides the shared representation types for the sequence
// backend: the model configuration descriptor, tensor data types, and the
// journal records written after every batch.
//
// This package contains type definitions and serialization only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types anywhere - tensor values are INT32, counts are int64
//   - Logical clocks (seq) only, never wall-clock timestamps
//   - All JSON tags use snake_case
//   - Canonical JSON (RFC 8785) is the only serialization used for hashing
//     and golden traces
package ir
