// Package store provides the SQLite execution journal for sequence
// engine instances.
//
// The store is append-only for batches and holds:
//   - Executions: one row per executed batch, keyed by content-addressed ID
//   - Slot Results: one row per payload, with the decoded step inputs
//   - Accumulators: the latest checkpoint of every slot of every instance
//
// *Store implements engine.Recorder, so an instance journals itself with
// engine.WithRecorder(store).
//
// # Critical Patterns
//
// Logical Time
//   - All ordering uses seq INTEGER (logical clock), NEVER timestamps
//   - UNIQUE(instance_id, seq): one batch per tick of an instance's clock
//
// Atomic Batches
//   - An execution, its slot rows and the checkpoint upsert are written
//     in one transaction
//
// Deterministic Query Results
//   - Batches are read ORDER BY seq ASC, slots ORDER BY slot ASC
//
// # Journal Lifecycle
//
// Open sets WAL, synchronous=NORMAL, a 5s busy timeout and foreign keys
// through go-sqlite3 DSN parameters, then runs the pending migrations.
// user_version holds the schema version; a journal from a newer build is
// refused with ErrNewerJournal.
package store
