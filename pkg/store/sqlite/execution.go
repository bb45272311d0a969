package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/openobserve/swisspipe-engine/pkg/model"
	"github.com/openobserve/swisspipe-engine/pkg/store"
)

func (s *Store) CreateExecution(ctx context.Context, e *model.Execution) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO workflow_executions
	(id, workflow_id, status, current_node_id, input_data, output_data, error_message, started_at, completed_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, e.ID, e.WorkflowID, e.Status, e.CurrentNodeID, e.InputData, e.OutputData, e.ErrorMessage, e.StartedAt, e.CompletedAt, e.CreatedAt, e.UpdatedAt)
	return err
}

func (s *Store) GetExecution(ctx context.Context, id string) (*model.Execution, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, workflow_id, status, current_node_id, input_data, output_data, error_message, started_at, completed_at, created_at, updated_at
FROM workflow_executions WHERE id = ?`, id)
	e, err := scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return e, err
}

func (s *Store) UpdateExecution(ctx context.Context, e *model.Execution) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE workflow_executions SET
	status = ?, current_node_id = ?, input_data = ?, output_data = ?, error_message = ?,
	started_at = ?, completed_at = ?, updated_at = ?
WHERE id = ?
`, e.Status, e.CurrentNodeID, e.InputData, e.OutputData, e.ErrorMessage, e.StartedAt, e.CompletedAt, e.UpdatedAt, e.ID)
	return err
}

func (s *Store) ListRecentExecutions(ctx context.Context, status model.ExecutionStatus, limit, offset int) ([]*model.Execution, error) {
	var rows *sql.Rows
	var err error
	if status == "" {
		rows, err = s.db.QueryContext(ctx, `
SELECT id, workflow_id, status, current_node_id, input_data, output_data, error_message, started_at, completed_at, created_at, updated_at
FROM workflow_executions ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	} else {
		rows, err = s.db.QueryContext(ctx, `
SELECT id, workflow_id, status, current_node_id, input_data, output_data, error_message, started_at, completed_at, created_at, updated_at
FROM workflow_executions WHERE status = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`, status, limit, offset)
	}
	if err != nil {
		return nil, err
	}
	return scanExecutions(rows)
}

func (s *Store) ListExecutionsByWorkflow(ctx context.Context, workflowID string, status model.ExecutionStatus, limit, offset int) ([]*model.Execution, error) {
	var rows *sql.Rows
	var err error
	if status == "" {
		rows, err = s.db.QueryContext(ctx, `
SELECT id, workflow_id, status, current_node_id, input_data, output_data, error_message, started_at, completed_at, created_at, updated_at
FROM workflow_executions WHERE workflow_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`, workflowID, limit, offset)
	} else {
		rows, err = s.db.QueryContext(ctx, `
SELECT id, workflow_id, status, current_node_id, input_data, output_data, error_message, started_at, completed_at, created_at, updated_at
FROM workflow_executions WHERE workflow_id = ? AND status = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`, workflowID, status, limit, offset)
	}
	if err != nil {
		return nil, err
	}
	return scanExecutions(rows)
}

func (s *Store) ListExecutionsByStatus(ctx context.Context, statuses ...model.ExecutionStatus) ([]*model.Execution, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	query := `SELECT id, workflow_id, status, current_node_id, input_data, output_data, error_message, started_at, completed_at, created_at, updated_at FROM workflow_executions WHERE status IN (`
	args := make([]any, 0, len(statuses))
	for i, st := range statuses {
		if i > 0 {
			query += ", "
		}
		query += "?"
		args = append(args, st)
	}
	query += ")"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanExecutions(rows)
}

func (s *Store) DeleteExecutionsOlderThan(ctx context.Context, cutoffMicros int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
DELETE FROM workflow_executions
WHERE completed_at IS NOT NULL AND completed_at < ?`, cutoffMicros)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExecution(row rowScanner) (*model.Execution, error) {
	var e model.Execution
	if err := row.Scan(&e.ID, &e.WorkflowID, &e.Status, &e.CurrentNodeID, &e.InputData, &e.OutputData, &e.ErrorMessage, &e.StartedAt, &e.CompletedAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func scanExecutions(rows *sql.Rows) ([]*model.Execution, error) {
	defer rows.Close()
	var out []*model.Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
