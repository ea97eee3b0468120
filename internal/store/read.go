package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/louyanyang/tensorrt-inference-server/internal/ir"
)

// InstanceSummary describes one journaled engine instance.
type InstanceSummary struct {
	InstanceID string `json:"instance_id"`
	ModelName  string `json:"model_name"`
	Batches    int    `json:"batches"`
	LastSeq    int64  `json:"last_seq"`
}

// Checkpoint is the latest accumulator value of every slot of an instance.
type Checkpoint struct {
	InstanceID string  `json:"instance_id"`
	Seq        int64   `json:"seq"` // Highest seq among the slots
	Values     []int32 `json:"values"`
}

// FailedSlot is a slot result with a non-empty error code.
type FailedSlot struct {
	Seq       int64  `json:"seq"`
	Slot      int    `json:"slot"`
	ErrorCode string `json:"error_code"`
}

// ReadExecutions returns every journaled batch of an instance, with slot
// results, ORDER BY seq ASC.
//
// Returns an empty slice (not nil) if the instance has no records.
func (s *Store) ReadExecutions(ctx context.Context, instanceID string) ([]ir.ExecutionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, instance_id, model_name, seq, payload_count, config_hash, engine_version, accumulators
		FROM executions
		WHERE instance_id = ?
		ORDER BY seq ASC
	`, instanceID)
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}

	records := []ir.ExecutionRecord{}
	for rows.Next() {
		rec, err := scanExecution(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate executions: %w", err)
	}
	rows.Close()

	// Slots are read after the cursor is closed: the pool holds a single
	// connection.
	for i := range records {
		slots, err := s.ReadSlotResults(ctx, records[i].ID)
		if err != nil {
			return nil, err
		}
		records[i].Slots = slots
	}

	return records, nil
}

// ReadExecution retrieves a single batch by ID.
// The error wraps sql.ErrNoRows if not found.
func (s *Store) ReadExecution(ctx context.Context, id string) (ir.ExecutionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, instance_id, model_name, seq, payload_count, config_hash, engine_version, accumulators
		FROM executions
		WHERE id = ?
	`, id)

	rec, err := scanExecution(row)
	if err != nil {
		return ir.ExecutionRecord{}, err
	}
	rec.Slots, err = s.ReadSlotResults(ctx, id)
	if err != nil {
		return ir.ExecutionRecord{}, err
	}
	return rec, nil
}

// ReadSlotResults returns the slot rows of one batch ORDER BY slot ASC.
func (s *Store) ReadSlotResults(ctx context.Context, executionID string) ([]ir.SlotRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT slot, error_code, step, emitted, written, output, accumulator
		FROM slot_results
		WHERE execution_id = ?
		ORDER BY slot ASC
	`, executionID)
	if err != nil {
		return nil, fmt.Errorf("query slot results: %w", err)
	}
	defer rows.Close()

	slots := []ir.SlotRecord{}
	for rows.Next() {
		var slot ir.SlotRecord
		var step sql.NullString
		if err := rows.Scan(
			&slot.Slot,
			&slot.ErrorCode,
			&step,
			&slot.Emitted,
			&slot.Written,
			&slot.Output,
			&slot.Accumulator,
		); err != nil {
			return nil, fmt.Errorf("scan slot result: %w", err)
		}
		if slot.Step, err = unmarshalStep(step); err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slot results: %w", err)
	}

	return slots, nil
}

// ReadAccumulators returns the latest checkpoint of an instance.
// Values is empty if the instance has never been journaled.
func (s *Store) ReadAccumulators(ctx context.Context, instanceID string) (Checkpoint, error) {
	cp := Checkpoint{InstanceID: instanceID, Values: []int32{}}

	rows, err := s.db.QueryContext(ctx, `
		SELECT slot, value, seq
		FROM accumulators
		WHERE instance_id = ?
		ORDER BY slot ASC
	`, instanceID)
	if err != nil {
		return cp, fmt.Errorf("query accumulators: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var slot int
		var value int32
		var seq int64
		if err := rows.Scan(&slot, &value, &seq); err != nil {
			return cp, fmt.Errorf("scan accumulator: %w", err)
		}
		for len(cp.Values) < slot {
			cp.Values = append(cp.Values, 0)
		}
		cp.Values = append(cp.Values, value)
		cp.Seq = max(cp.Seq, seq)
	}
	if err := rows.Err(); err != nil {
		return cp, fmt.Errorf("iterate accumulators: %w", err)
	}

	return cp, nil
}

// ListInstances returns all journaled instances ordered by instance ID.
func (s *Store) ListInstances(ctx context.Context) ([]InstanceSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT instance_id, MIN(model_name), COUNT(*), MAX(seq)
		FROM executions
		GROUP BY instance_id
		ORDER BY instance_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	defer rows.Close()

	instances := []InstanceSummary{}
	for rows.Next() {
		var inst InstanceSummary
		if err := rows.Scan(&inst.InstanceID, &inst.ModelName, &inst.Batches, &inst.LastSeq); err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		instances = append(instances, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instances: %w", err)
	}

	return instances, nil
}

// GetLastSeq returns the highest seq journaled for an instance, or 0.
// Used to resume the logical clock of a restored instance.
func (s *Store) GetLastSeq(ctx context.Context, instanceID string) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM executions WHERE instance_id = ?
	`, instanceID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("get last seq: %w", err)
	}
	return seq, nil
}

// ReadFailedSlots returns every failed slot of an instance ORDER BY seq, slot.
func (s *Store) ReadFailedSlots(ctx context.Context, instanceID string) ([]FailedSlot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.seq, r.slot, r.error_code
		FROM slot_results r
		JOIN executions e ON r.execution_id = e.id
		WHERE e.instance_id = ? AND r.error_code != ''
		ORDER BY e.seq ASC, r.slot ASC
	`, instanceID)
	if err != nil {
		return nil, fmt.Errorf("query failed slots: %w", err)
	}
	defer rows.Close()

	failed := []FailedSlot{}
	for rows.Next() {
		var f FailedSlot
		if err := rows.Scan(&f.Seq, &f.Slot, &f.ErrorCode); err != nil {
			return nil, fmt.Errorf("scan failed slot: %w", err)
		}
		failed = append(failed, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate failed slots: %w", err)
	}

	return failed, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExecution(row rowScanner) (ir.ExecutionRecord, error) {
	var rec ir.ExecutionRecord
	var accJSON string
	err := row.Scan(
		&rec.ID,
		&rec.InstanceID,
		&rec.ModelName,
		&rec.Seq,
		&rec.PayloadCount,
		&rec.ConfigHash,
		&rec.EngineVersion,
		&accJSON,
	)
	if err != nil {
		return rec, fmt.Errorf("scan execution: %w", err)
	}
	if rec.Accumulators, err = unmarshalValues(accJSON); err != nil {
		return rec, err
	}
	return rec, nil
}
