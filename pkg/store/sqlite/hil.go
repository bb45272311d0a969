package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/openobserve/swisspipe-engine/pkg/model"
	"github.com/openobserve/swisspipe-engine/pkg/store"
)

// CreateHilTask implements spec §4.9's dedup-on-node_execution_id
// contract: in one transaction, check for an existing row keyed by
// node_execution_id before inserting, so concurrent retries of the same
// node never produce two tasks (spec §8 idempotence property 10).
func (s *Store) CreateHilTask(ctx context.Context, t *model.HilTask) (bool, *model.HilTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return false, nil, err
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := scanHil(tx.QueryRowContext(ctx, hilSelectColumns+`FROM human_in_loop_tasks WHERE node_execution_id = ?`, t.NodeExecutionID))
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
