package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/openobserve/swisspipe-engine/pkg/model"
	"github.com/openobserve/swisspipe-engine/pkg/store"
)

// CreateHilTask mirrors the SQLite backend's dedup-on-node_execution_id
// transaction, relying on InnoDB row locks instead of the single-writer
// mutex the SQLite backend needs.
func (s *Store) CreateHilTask(ctx context.Context, t *model.HilTask) (bool, *model.HilTask, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, nil, err
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := scanHil(tx.QueryRowContext(ctx, hilSelectColumns+`FROM human_in_loop_tasks WHERE node_execution_id = ? FOR UPDATE`, t.NodeExecutionID))
	if err == nil {
		if cErr := tx.Commit(); cErr != nil {
			return false, nil, cErr
		}
		return false, existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, nil, err
	}

	if t.ID == "" {
		t.ID = uuid.Must(uuid.NewV7()).String()
	}
	now := nowMicros()
	t.CreatedAt, t.UpdatedAt = now, now
	if t.Status == "" {
		t.Status = model.HilPending
	}
	if t.TimeoutAction == "" {
		t.TimeoutAction = model.HilDenied
	}

	fieldsJSON, _ := json.Marshal(t.RequiredFields)
	metaJSON, _ := json.Marshal(t.Metadata)
	respJSON, _ := json.Marshal(t.ResponseData)

	_, err = tx.ExecContext(ctx, `
INSERT INTO human_in_loop_tasks
	(id, execution_id, workflow_id, node_id, node_execution_id, title, description, status, timeout_at, timeout_action,
	 required_fields, metadata, response_data, response_received_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, t.ID, t.ExecutionID, t.WorkflowID, t.NodeID, t.NodeExecutionID, t.Title, t.Description, t.Status, t.TimeoutAt, t.TimeoutAction,
		fieldsJSON, metaJSON, respJSON, t.ResponseReceivedAt, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return false, nil, err
	}
	if err := tx.Commit(); err != nil {
		return false, nil, err
	}
	return true, t, nil
}

func (s *Store) GetHilTask(ctx context.Context, id string) (*model.HilTask, error) {
	t, err := scanHil(s.db.QueryRowContext(ctx, hilSelectColumns+`FROM human_in_loop_tasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return t, err
}

func (s *Store) UpdateHilTask(ctx context.Context, t *model.HilTask) error {
	t.UpdatedAt = nowMicros()
	fieldsJSON, _ := json.Marshal(t.RequiredFields)
	metaJSON, _ := json.Marshal(t.Metadata)
	respJSON, _ := json.Marshal(t.ResponseData)
	_, err := s.db.ExecContext(ctx, `
UPDATE human_in_loop_tasks SET
	status = ?, timeout_at = ?, timeout_action = ?, required_fields = ?, metadata = ?, response_data = ?,
	response_received_at = ?, updated_at = ?
WHERE id = ?
`, t.Status, t.TimeoutAt, t.TimeoutAction, fieldsJSON, metaJSON, respJSON, t.ResponseReceivedAt, t.UpdatedAt, t.ID)
	return err
}

func (s *Store) ListExpiredPending(ctx context.Context, nowMicros int64) ([]*model.HilTask, error) {
	rows, err := s.db.QueryContext(ctx, hilSelectColumns+`FROM human_in_loop_tasks WHERE status = 'pending' AND timeout_at IS NOT NULL AND timeout_at < ?`, nowMicros)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.HilTask
	for rows.Next() {
		t, err := scanHil(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

const hilSelectColumns = `SELECT id, execution_id, workflow_id, node_id, node_execution_id, title, description, status,
	timeout_at, timeout_action, required_fields, metadata, response_data, response_received_at, created_at, updated_at `

func scanHil(row rowScanner) (*model.HilTask, error) {
	var t model.HilTask
	var fieldsJSON, metaJSON, respJSON []byte
	if err := row.Scan(&t.ID, &t.ExecutionID, &t.WorkflowID, &t.NodeID, &t.NodeExecutionID, &t.Title, &t.Description, &t.Status,
		&t.TimeoutAt, &t.TimeoutAction, &fieldsJSON, &metaJSON, &respJSON, &t.ResponseReceivedAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	_ = json.Unmarshal(fieldsJSON, &t.RequiredFields)
	_ = json.Unmarshal(metaJSON, &t.Metadata)
	_ = json.Unmarshal(respJSON, &t.ResponseData)
	return &t, nil
}
