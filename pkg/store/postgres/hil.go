package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/openobserve/swisspipe-engine/pkg/model"
	"github.com/openobserve/swisspipe-engine/pkg/store"
)

func (s *Store) CreateHilTask(ctx context.Context, t *model.HilTask) (bool, *model.HilTask, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	existing, err := scanHil(tx.QueryRow(ctx, hilSelectColumns+`FROM human_in_loop_tasks WHERE node_execution_id = $1 FOR UPDATE`, t.NodeExecutionID))
	if err == nil {
		if cErr := tx.Commit(ctx); cErr != nil {
			return false, nil, cErr
		}
		return false, existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
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

	_, err = tx.Exec(ctx, `
INSERT INTO human_in_loop_tasks
	(id, execution_id, workflow_id, node_id, node_execution_id, title, description, status, timeout_at, timeout_action,
	 required_fields, metadata, response_data, response_received_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
`, t.ID, t.ExecutionID, t.WorkflowID, t.NodeID, t.NodeExecutionID, t.Title, t.Description, t.Status, t.TimeoutAt, t.TimeoutAction,
		fieldsJSON, metaJSON, respJSON, t.ResponseReceivedAt, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return false, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, nil, err
	}
	return true, t, nil
}

func (s *Store) GetHilTask(ctx context.Context, id string) (*model.HilTask, error) {
	t, err := scanHil(s.pool.QueryRow(ctx, hilSelectColumns+`FROM human_in_loop_tasks WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return t, err
}

func (s *Store) UpdateHilTask(ctx context.Context, t *model.HilTask) error {
	t.UpdatedAt = nowMicros()
	fieldsJSON, _ := json.Marshal(t.RequiredFields)
	metaJSON, _ := json.Marshal(t.Metadata)
	respJSON, _ := json.Marshal(t.ResponseData)
	_, err := s.pool.Exec(ctx, `
UPDATE human_in_loop_tasks SET
	status = $1, timeout_at = $2, timeout_action = $3, required_fields = $4, metadata = $5, response_data = $6,
	response_received_at = $7, updated_at = $8
WHERE id = $9
`, t.Status, t.TimeoutAt, t.TimeoutAction, fieldsJSON, metaJSON, respJSON, t.ResponseReceivedAt, t.UpdatedAt, t.ID)
	return err
}

func (s *Store) ListExpiredPending(ctx context.Context, nowMicros int64) ([]*model.HilTask, error) {
	rows, err := s.pool.Query(ctx, hilSelectColumns+`FROM human_in_loop_tasks WHERE status = 'pending' AND timeout_at IS NOT NULL AND timeout_at < $1`, nowMicros)
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
