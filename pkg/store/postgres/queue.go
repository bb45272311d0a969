package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/openobserve/swisspipe-engine/pkg/model"
	"github.com/openobserve/swisspipe-engine/pkg/store"
)

func (s *Store) Enqueue(ctx context.Context, executionID string, priority int, payload []byte, maxRetries int) (*model.Job, error) {
	now := nowMicros()
	j := &model.Job{
		ID:          uuid.Must(uuid.NewV7()).String(),
		ExecutionID: executionID,
		Priority:    priority,
		ScheduledAt: now,
		MaxRetries:  maxRetries,
		RetryCount:  0,
		Status:      model.JobPending,
		Payload:     payload,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO job_queue (id, execution_id, priority, scheduled_at, max_retries, retry_count, status, payload, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`, j.ID, j.ExecutionID, j.Priority, j.ScheduledAt, j.MaxRetries, j.RetryCount, j.Status, j.Payload, j.CreatedAt, j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return j, nil
}

// Claim mirrors the MySQL backend: SELECT ... FOR UPDATE SKIP LOCKED,
// natively supported by PostgreSQL (spec §4.1's MySQL/PostgreSQL-class
// claim protocol).
func (s *Store) Claim(ctx context.Context, workerID string) (*model.Job, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := nowMicros()
	row := tx.QueryRow(ctx, `
SELECT id FROM job_queue
WHERE status = 'pending' AND scheduled_at <= $1
ORDER BY priority DESC, scheduled_at ASC
LIMIT 1 FOR UPDATE SKIP LOCKED`, now)

	var jobID string
	if err := row.Scan(&jobID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	claimedAt := nowMicros()
	if _, err := tx.Exec(ctx, `
UPDATE job_queue SET status = 'claimed', claimed_at = $1, claimed_by = $2, updated_at = $3
WHERE id = $4`, claimedAt, workerID, claimedAt, jobID); err != nil {
		return nil, err
	}

	j, err := scanJob(tx.QueryRow(ctx, jobSelectColumns+"FROM job_queue WHERE id = $1", jobID))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return j, nil
}

func (s *Store) Complete(ctx context.Context, jobID string) error {
	_, err := s.pool.Exec(ctx, `UPDATE job_queue SET status = 'completed', updated_at = $1 WHERE id = $2`, nowMicros(), jobID)
	return err
}

func (s *Store) Fail(ctx context.Context, jobID, errMsg string) (bool, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return false, err
	}

	now := nowMicros()
	newRetryCount := job.RetryCount + 1
	if newRetryCount > job.MaxRetries {
		_, err := s.pool.Exec(ctx, `
UPDATE job_queue SET status = 'dead_letter', retry_count = $1, error_message = $2, claimed_at = NULL, claimed_by = NULL, updated_at = $3
WHERE id = $4`, newRetryCount, errMsg, now, jobID)
		return false, err
	}

	backoff := int64(1000)
	for i := 0; i < newRetryCount; i++ {
		backoff *= 2
	}
	scheduledAt := now + backoff*int64(time.Millisecond)/int64(time.Microsecond)

	_, err = s.pool.Exec(ctx, `
UPDATE job_queue SET status = 'pending', retry_count = $1, error_message = $2, scheduled_at = $3, claimed_at = NULL, claimed_by = NULL, updated_at = $4
WHERE id = $5`, newRetryCount, errMsg, scheduledAt, now, jobID)
	return true, err
}

func (s *Store) CleanupStale(ctx context.Context, timeoutMicros int64) (int, error) {
	cutoff := nowMicros() - timeoutMicros
	tag, err := s.pool.Exec(ctx, `
UPDATE job_queue SET status = 'pending', claimed_at = NULL, claimed_by = NULL, updated_at = $1
WHERE status = 'claimed' AND claimed_at < $2`, nowMicros(), cutoff)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) Stats(ctx context.Context) (store.JobStats, error) {
	var st store.JobStats
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM job_queue GROUP BY status`)
	if err != nil {
		return st, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return st, err
		}
		switch model.JobStatus(status) {
		case model.JobPending:
			st.Pending = n
		case model.JobClaimed:
			st.Claimed = n
		case model.JobProcessing:
			st.Processing = n
		case model.JobCompleted:
			st.Completed = n
		case model.JobFailed:
			st.Failed = n
		case model.JobDeadLetter:
			st.DeadLetter = n
		}
	}
	return st, rows.Err()
}

const jobSelectColumns = `SELECT id, execution_id, priority, scheduled_at, claimed_at, claimed_by, max_retries, retry_count, status, error_message, payload, created_at, updated_at `

func (s *Store) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx, jobSelectColumns+"FROM job_queue WHERE id = $1", jobID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return j, err
}

func (s *Store) ResetJob(ctx context.Context, jobID string) error {
	_, err := s.pool.Exec(ctx, `
UPDATE job_queue SET status = 'pending', scheduled_at = $1, retry_count = 0, error_message = NULL, claimed_at = NULL, claimed_by = NULL, updated_at = $2
WHERE id = $3`, nowMicros(), nowMicros(), jobID)
	return err
}

func (s *Store) CountPendingForExecution(ctx context.Context, executionID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM job_queue WHERE execution_id = $1 AND status IN ('pending','claimed','processing')`, executionID).Scan(&n)
	return n, err
}

func (s *Store) FailPendingJobForExecution(ctx context.Context, executionID, reason string) error {
	_, err := s.pool.Exec(ctx, `
UPDATE job_queue SET status = 'failed', error_message = $1, updated_at = $2
WHERE execution_id = $3 AND status = 'pending'`, reason, nowMicros(), executionID)
	return err
}

func scanJob(row rowScanner) (*model.Job, error) {
	var j model.Job
	if err := row.Scan(&j.ID, &j.ExecutionID, &j.Priority, &j.ScheduledAt, &j.ClaimedAt, &j.ClaimedBy, &j.MaxRetries, &j.RetryCount, &j.Status, &j.ErrorMessage, &j.Payload, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	return &j, nil
}
