package mysql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/openobserve/swisspipe-engine/pkg/model"
	"github.com/openobserve/swisspipe-engine/pkg/store"
)

const stepSelectColumns = `SELECT id, execution_id, node_id, node_name, status, input_data, output_data, error_message, started_at, completed_at, created_at, updated_at `

func (s *Store) CreateStep(ctx context.Context, st *model.Step) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO execution_steps (id, execution_id, node_id, node_name, status, input_data, output_data, error_message, started_at, completed_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, st.ID, st.ExecutionID, st.NodeID, st.NodeName, st.Status, st.InputData, st.OutputData, st.ErrorMessage, st.StartedAt, st.CompletedAt, st.CreatedAt, st.UpdatedAt)
	return err
}

func (s *Store) UpdateStep(ctx context.Context, st *model.Step) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE execution_steps SET
	status = ?, input_data = ?, output_data = ?, error_message = ?, started_at = ?, completed_at = ?, updated_at = ?
WHERE id = ?
`, st.Status, st.InputData, st.OutputData, st.ErrorMessage, st.StartedAt, st.CompletedAt, st.UpdatedAt, st.ID)
	return err
}

func (s *Store) GetStepsByExecution(ctx context.Context, executionID string) ([]*model.Step, error) {
	rows, err := s.db.QueryContext(ctx, stepSelectColumns+`FROM execution_steps WHERE execution_id = ? ORDER BY created_at ASC`, executionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Step
	for rows.Next() {
		var st model.Step
		if err := rows.Scan(&st.ID, &st.ExecutionID, &st.NodeID, &st.NodeName, &st.Status, &st.InputData, &st.OutputData, &st.ErrorMessage, &st.StartedAt, &st.CompletedAt, &st.CreatedAt, &st.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &st)
	}
	return out, rows.Err()
}

func (s *Store) GetLatestStep(ctx context.Context, executionID, nodeID string) (*model.Step, error) {
	row := s.db.QueryRowContext(ctx, stepSelectColumns+`FROM execution_steps WHERE execution_id = ? AND node_id = ? ORDER BY created_at DESC LIMIT 1`, executionID, nodeID)
	var st model.Step
	err := row.Scan(&st.ID, &st.ExecutionID, &st.NodeID, &st.NodeName, &st.Status, &st.InputData, &st.OutputData, &st.ErrorMessage, &st.StartedAt, &st.CompletedAt, &st.CreatedAt, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}
