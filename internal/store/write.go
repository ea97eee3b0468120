package store

import (
	"context"
	"fmt"

	"github.com/louyanyang/tensorrt-inference-server/internal/ir"
)

// RecordExecution journals one executed batch. Implements engine.Recorder.
//
// The execution row, its slot rows and the accumulator checkpoint are
// written in one transaction. Uses ON CONFLICT(id) DO NOTHING for
// idempotency: recording the same batch twice leaves the journal
// unchanged. A checkpoint is only overwritten by a later seq.
func (s *Store) RecordExecution(ctx context.Context, rec ir.ExecutionRecord) error {
	accJSON, err := marshalValues(rec.Accumulators)
	if err != nil {
		return fmt.Errorf("record execution: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record execution: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO executions
		(id, instance_id, model_name, seq, payload_count, config_hash, engine_version, record_version, accumulators)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.InstanceID,
		rec.ModelName,
		rec.Seq,
		rec.PayloadCount,
		rec.ConfigHash,
		rec.EngineVersion,
		ir.RecordVersion,
		accJSON,
	)
	if err != nil {
		return fmt.Errorf("record execution: insert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("record execution: rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Already journaled.
		return tx.Commit()
	}

	for _, slot := range rec.Slots {
		stepJSON, err := marshalStep(slot.Step)
		if err != nil {
			return fmt.Errorf("record execution: slot %d: %w", slot.Slot, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO slot_results
			(execution_id, slot, error_code, step, emitted, written, output, accumulator)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			rec.ID,
			slot.Slot,
			slot.ErrorCode,
			stepJSON,
			slot.Emitted,
			slot.Written,
			slot.Output,
			slot.Accumulator,
		)
		if err != nil {
			return fmt.Errorf("record execution: slot %d: %w", slot.Slot, err)
		}
	}

	for i, v := range rec.Accumulators {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO accumulators (instance_id, slot, value, seq)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(instance_id, slot) DO UPDATE
			SET value = excluded.value, seq = excluded.seq
			WHERE excluded.seq > accumulators.seq
		`, rec.InstanceID, i, v, rec.Seq)
		if err != nil {
			return fmt.Errorf("record execution: checkpoint slot %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record execution: commit: %w", err)
	}
	return nil
}
