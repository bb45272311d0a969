package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/openobserve/swisspipe-engine/pkg/model"
	"github.com/openobserve/swisspipe-engine/pkg/store"
)

const execSelectColumns = `SELECT id, workflow_id, status, current_node_id, input_data, output_data, error_message, started_at, completed_at, created_at, updated_at `

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) CreateExecution(ctx context.Context, e *model.Execution) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO workflow_executions (id, workflow_id, status, current_node_id, input_data, output_data, error_message, started_at, completed_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`, e.ID, e.WorkflowID, e.Status, e.CurrentNodeID, e.InputData, e.OutputData, e.ErrorMessage, e.StartedAt, e.CompletedAt, e.CreatedAt, e.UpdatedAt)
	return err
}

func (s *Store) GetExecution(ctx context.Context, id string) (*model.Execution, error) {
	row := s.pool.QueryRow(ctx, execSelectColumns+`FROM workflow_executions WHERE id = $1`, id)
	e, err := scanExecution(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return e, err
}

func (s *Store) UpdateExecution(ctx context.Context, e *model.Execution) error {
	_, err := s.pool.Exec(ctx, `
UPDATE workflow_executions SET
	status = $1, current_node_id = $2, input_data = $3, output_data = $4, error_message = $5, started_at = $6, completed_at = $7, updated_at = $8
WHERE id = $9
`, e.Status, e.CurrentNodeID, e.InputData, e.OutputData, e.ErrorMessage, e.StartedAt, e.CompletedAt, e.UpdatedAt, e.ID)
	return err
}

func (s *Store) ListRecentExecutions(ctx context.Context, status model.ExecutionStatus, limit, offset int) ([]*model.Execution, error) {
	var rows pgx.Rows
	var err error
	if status == "" {
		rows, err = s.pool.Query(ctx, execSelectColumns+`FROM workflow_executions ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	} else {
		rows, err = s.pool.Query(ctx, execSelectColumns+`FROM workflow_executions WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, status, limit, offset)
	}
	if err != nil {
		return nil, err
	}
	return scanExecutions(rows)
}

func (s *Store) ListExecutionsByWorkflow(ctx context.Context, workflowID string, status model.ExecutionStatus, limit, offset int) ([]*model.Execution, error) {
	var rows pgx.Rows
	var err error
	if status == "" {
		rows, err = s.pool.Query(ctx, execSelectColumns+`FROM workflow_executions WHERE workflow_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, workflowID, limit, offset)
	} else {
		rows, err = s.pool.Query(ctx, execSelectColumns+`FROM workflow_executions WHERE workflow_id = $1 AND status = $2 ORDER BY created_at DESC LIMIT $3 OFFSET $4`, workflowID, status, limit, offset)
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
	placeholders := make([]string, len(statuses))
	args := make([]any, len(statuses))
	for i, st := range statuses {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = st
	}
	query := execSelectColumns + fmt.Sprintf(`FROM workflow_executions WHERE status IN (%s)`, strings.Join(placeholders, ","))
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanExecutions(rows)
}

func (s *Store) DeleteExecutionsOlderThan(ctx context.Context, cutoffMicros int64) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM workflow_executions WHERE completed_at IS NOT NULL AND completed_at < $1`, cutoffMicros)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanExecution(row rowScanner) (*model.Execution, error) {
	var e model.Execution
	if err := row.Scan(&e.ID, &e.WorkflowID, &e.Status, &e.CurrentNodeID, &e.InputData, &e.OutputData, &e.ErrorMessage, &e.StartedAt, &e.CompletedAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func scanExecutions(rows pgx.Rows) ([]*model.Execution, error) {
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
