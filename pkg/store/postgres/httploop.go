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

func (s *Store) CreateLoop(ctx context.Context, l *model.HttpLoopState) error {
	if l.ID == "" {
		l.ID = uuid.Must(uuid.NewV7()).String()
	}
	now := nowMicros()
	l.CreatedAt, l.UpdatedAt = now, now
	if l.LoopStartedAt == 0 {
		l.LoopStartedAt = now
	}
	headersJSON, historyJSON, cfgJSON, err := encodeLoopJSON(l)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO http_loop_states
	(id, execution_step_id, current_iteration, max_iterations, next_execution_at, consecutive_failures,
	 loop_started_at, last_response_status, last_response_body, iteration_history, status, termination_reason,
	 url, method, timeout_seconds, headers, loop_config, initial_event, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
`, l.ID, l.ExecutionStepID, l.CurrentIteration, l.MaxIterations, l.NextExecutionAt, l.ConsecutiveFailures,
		l.LoopStartedAt, l.LastResponseStatus, l.LastResponseBody, historyJSON, l.Status, l.TerminationReason,
		l.URL, l.Method, l.TimeoutSeconds, headersJSON, cfgJSON, l.InitialEvent, l.CreatedAt, l.UpdatedAt)
	return err
}

func (s *Store) GetLoop(ctx context.Context, id string) (*model.HttpLoopState, error) {
	row := s.pool.QueryRow(ctx, loopSelectColumns+`FROM http_loop_states WHERE id = $1`, id)
	l, err := scanLoop(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return l, err
}

func (s *Store) UpdateLoop(ctx context.Context, l *model.HttpLoopState) error {
	l.UpdatedAt = nowMicros()
	headersJSON, historyJSON, cfgJSON, err := encodeLoopJSON(l)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
UPDATE http_loop_states SET
	current_iteration = $1, max_iterations = $2, next_execution_at = $3, consecutive_failures = $4,
	last_response_status = $5, last_response_body = $6, iteration_history = $7, status = $8, termination_reason = $9,
	headers = $10, loop_config = $11, updated_at = $12
WHERE id = $13
`, l.CurrentIteration, l.MaxIterations, l.NextExecutionAt, l.ConsecutiveFailures,
		l.LastResponseStatus, l.LastResponseBody, historyJSON, l.Status, l.TerminationReason,
		headersJSON, cfgJSON, l.UpdatedAt, l.ID)
	return err
}

func (s *Store) ListDueLoops(ctx context.Context, nowMicros int64) ([]*model.HttpLoopState, error) {
	rows, err := s.pool.Query(ctx, loopSelectColumns+`FROM http_loop_states WHERE status = 'running' AND next_execution_at <= $1`, nowMicros)
	if err != nil {
		return nil, err
	}
	return scanLoops(rows)
}

func (s *Store) ListRunningLoops(ctx context.Context) ([]*model.HttpLoopState, error) {
	rows, err := s.pool.Query(ctx, loopSelectColumns+`FROM http_loop_states WHERE status = 'running'`)
	if err != nil {
		return nil, err
	}
	return scanLoops(rows)
}

const loopSelectColumns = `SELECT id, execution_step_id, current_iteration, max_iterations, next_execution_at, consecutive_failures,
	loop_started_at, last_response_status, last_response_body, iteration_history, status, termination_reason,
	url, method, timeout_seconds, headers, loop_config, initial_event, created_at, updated_at `

func encodeLoopJSON(l *model.HttpLoopState) (headersJSON, historyJSON, cfgJSON []byte, err error) {
	if headersJSON, err = json.Marshal(l.Headers); err != nil {
		return
	}
	if historyJSON, err = json.Marshal(l.IterationHistory); err != nil {
		return
	}
	cfgJSON, err = json.Marshal(l.LoopConfig)
	return
}

func scanLoop(row rowScanner) (*model.HttpLoopState, error) {
	var l model.HttpLoopState
	var headersJSON, historyJSON, cfgJSON []byte
	if err := row.Scan(&l.ID, &l.ExecutionStepID, &l.CurrentIteration, &l.MaxIterations, &l.NextExecutionAt, &l.ConsecutiveFailures,
		&l.LoopStartedAt, &l.LastResponseStatus, &l.LastResponseBody, &historyJSON, &l.Status, &l.TerminationReason,
		&l.URL, &l.Method, &l.TimeoutSeconds, &headersJSON, &cfgJSON, &l.InitialEvent, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	_ = json.Unmarshal(headersJSON, &l.Headers)
	_ = json.Unmarshal(historyJSON, &l.IterationHistory)
	_ = json.Unmarshal(cfgJSON, &l.LoopConfig)
	return &l, nil
}

func scanLoops(rows pgx.Rows) ([]*model.HttpLoopState, error) {
	defer rows.Close()
	var out []*model.HttpLoopState
	for rows.Next() {
		l, err := scanLoop(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
