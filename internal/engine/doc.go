// Package engine implements the sequence accumulator engine.
//
// An Engine owns one accumulator per batch slot. Each Execute call carries
// one timestep for up to MaxBatchSize independent sequences; the payload at
// index i always drives accumulator i.
//
// ARCHITECTURE:
//
// Lifecycle:
// 1. New builds an instance from a compiled ir.ModelConfig
// 2. Init checks the configuration shape and sizes the accumulator store
// 3. Execute is called once per batch, any number of times
//
// Create combines New and Init.
//
// Batch Processing Flow:
// 1. Reject batches larger than the accumulator store (BATCH_TOO_LARGE)
// 2. Sleep for execute_delay_ms, if configured
// 3. Per payload: assemble START, READY and INPUT from the InputSource
// 4. Apply the step rule to the slot accumulator
// 5. Copy the accumulator into the buffer returned by the OutputSink
//
// Failures inside step 3-5 are recorded on that payload only and the loop
// moves on. Execute itself fails only for whole-batch errors.
//
// CONCURRENCY:
//
// An Engine is not safe for concurrent Execute calls. Accumulators are
// mutated in place; the host serializes batches for one instance.
//
// CRITICAL PATTERNS:
//
// Logical Clock
// Every executed batch is stamped with a seq from Clock.Next(). Journal
// records are ordered by seq, never by wall-clock time.
package engine
