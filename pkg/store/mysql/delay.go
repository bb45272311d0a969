package mysql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/openobserve/swisspipe-engine/pkg/model"
	"github.com/openobserve/swisspipe-engine/pkg/store"
)

func (s *Store) CreateDelay(ctx context.Context, d *model.ScheduledDelay) error {
	if d.ID == "" {
		d.ID = uuid.Must(uuid.NewV7()).String()
	}
	now := nowMicros()
	d.CreatedAt, d.UpdatedAt = now, now
	if d.Status == "" {
		d.Status = model.DelayPending
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO scheduled_delays (id, execution_id, current_node_id, next_node_id, scheduled_at, workflow_state, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`, d.ID, d.ExecutionID, d.CurrentNodeID, d.NextNodeID, d.ScheduledAt, d.WorkflowState, d.Status, d.CreatedAt, d.UpdatedAt)
	return err
}

func (s *Store) GetDelay(ctx context.Context, id string) (*model.ScheduledDelay, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, execution_id, current_node_id, next_node_id, scheduled_at, workflow_state, status, created_at, updated_at
FROM scheduled_delays WHERE id = ?`, id)
	d, err := scanDelay(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return d, err
}

func (s *Store) TriggerDelay(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
UPDATE scheduled_delays SET status = 'triggered', updated_at = ? WHERE id = ? AND status = 'pending'`, nowMicros(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *Store) CancelDelay(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
UPDATE scheduled_delays SET status = 'cancelled', updated_at = ? WHERE id = ? AND status = 'pending'`, nowMicros(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *Store) CancelDelaysForExecution(ctx context.Context, executionID string) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE scheduled_delays SET status = 'cancelled', updated_at = ? WHERE execution_id = ? AND status = 'pending'`, nowMicros(), executionID)
	return err
}

func (s *Store) ListPendingDelays(ctx context.Context) ([]*model.ScheduledDelay, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, execution_id, current_node_id, next_node_id, scheduled_at, workflow_state, status, created_at, updated_at
FROM scheduled_delays WHERE status = 'pending' ORDER BY scheduled_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.ScheduledDelay
	for rows.Next() {
		d, err := scanDelay(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanDelay(row rowScanner) (*model.ScheduledDelay, error) {
	var d model.ScheduledDelay
	if err := row.Scan(&d.ID, &d.ExecutionID, &d.CurrentNodeID, &d.NextNodeID, &d.ScheduledAt, &d.WorkflowState, &d.Status, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}
