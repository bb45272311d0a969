package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/openobserve/swisspipe-engine/pkg/model"
	"github.com/openobserve/swisspipe-engine/pkg/store"
)

// Enqueue inserts a new pending Job (spec §3, §4.1). Grounded on
// original_source/src/database/job_queue.rs's ActiveModelBehavior::new:
// UUIDv7 id, scheduled_at = now, retry_count = 0, status = pending.
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
	_, err := s.db.ExecContext(ctx, `
INSERT INTO job_queue (id, execution_id, priority, scheduled_at, max_retries, retry_count, status, payload, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, j.ID, j.ExecutionID, j.Priority, j.ScheduledAt, j.MaxRetries, j.RetryCount, j.Status, j.Payload, j.CreatedAt, j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return j, nil
}

// Claim implements spec §4.1's SQLite-class claim protocol: a short
// serializable transaction that SELECTs the highest-priority,
// earliest-scheduled pending row, UPDATEs it to claimed, and COMMITs.
// s.mu serializes claim attempts in-process; SQLite itself only allows one
// writer, so the mutex avoids contending on SQLITE_BUSY under load
// (load-bearing per spec §9 Design Notes on the single-consumer mutex).
func (s *Store) Claim(ctx context.Context, workerID string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	now := nowMicros()
	row := tx.QueryRowContext(ctx, `
SELECT id FROM job_queue
WHERE status = 'pending' AND scheduled_at <= ?
ORDER BY priority DESC, scheduled_at ASC
LIMIT 1`, now)

	var jobID string
	if err := row.Scan(&jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	claimedAt := nowMicros()
	if _, err := tx.ExecContext(ctx, `
UPDATE job_queue SET status = 'claimed', claimed_at = ?, claimed_by = ?, updated_at = ?
WHERE id = ? AND status = 'pending'`, claimedAt, workerID, claimedAt, jobID); err != nil {
		return nil, err
	}

	j, err := scanJob(tx.QueryRowContext(ctx, jobSelectColumns+"FROM job_queue WHERE id = ?", jobID))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return j, nil
}

func (s *Store) Complete(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE job_queue SET status = 'completed', updated_at = ? WHERE id = ?`, nowMicros(), jobID)
	return err
}

// Fail implements spec §4.1's retry formula: scheduled_at = now +
// 1000*2^retry_count ms; claimed_at/claimed_by cleared; dead_letter once
// retry_count > max_retries.
func (s *Store) Fail(ctx context.Context, jobID, errMsg string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return false, err
	}

	now := nowMicros()
	newRetryCount := job.RetryCount + 1
	if newRetryCount > job.MaxRetries {
		_, err := s.db.ExecContext(ctx, `
UPDATE job_queue SET status = 'dead_letter', retry_count = ?, error_message = ?, claimed_at = NULL, claimed_by = NULL, updated_at = ?
WHERE id = ?`, newRetryCount, errMsg, now, jobID)
		return false, err
	}

	backoff := int64(1000)
	for i := 0; i < newRetryCount; i++ {
		backoff *= 2
	}
	scheduledAt := now + backoff*int64(time.Millisecond)/int64(time.Microsecond)

	_, err = s.db.ExecContext(ctx, `
UPDATE job_queue SET status = 'pending', retry_count = ?, error_message = ?, scheduled_at = ?, claimed_at = NULL, claimed_by = NULL, updated_at = ?
WHERE id = ?`, newRetryCount, errMsg, scheduledAt, now, jobID)
	return true, err
}

// CleanupStale reverts claimed rows whose claimed_at predates the timeout
// back to pending (spec §4.1, testable invariant 6).
func (s *Store) CleanupStale(ctx context.Context, timeoutMicros int64) (int, error) {
	cutoff := nowMicros() - timeoutMicros
	res, err := s.db.ExecContext(ctx, `
UPDATE job_queue SET status = 'pending', claimed_at = NULL, claimed_by = NULL, updated_at = ?
WHERE status = 'claimed' AND claimed_at < ?`, nowMicros(), cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *Store) Stats(ctx context.Context) (store.JobStats, error) {
	var st store.JobStats
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM job_queue GROUP BY status`)
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
	j, err := scanJob(s.db.QueryRowContext(ctx, jobSelectColumns+"FROM job_queue WHERE id = ?", jobID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return j, err
}

// ResetJob implements the operator "resubmit" path for a dead-lettered job
// (spec §7: "Dead-lettered jobs... can be manually resubmitted by bumping
// scheduled_at and clearing status").
func (s *Store) ResetJob(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE job_queue SET status = 'pending', scheduled_at = ?, retry_count = 0, error_message = NULL, claimed_at = NULL, claimed_by = NULL, updated_at = ?
WHERE id = ?`, nowMicros(), nowMicros(), jobID)
	return err
}

func (s *Store) CountPendingForExecution(ctx context.Context, executionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM job_queue WHERE execution_id = ? AND status IN ('pending','claimed','processing')`, executionID).Scan(&n)
	return n, err
}

// FailPendingJobForExecution implements the cancellation contract of spec
// §5: mark the one current pending job failed with "Execution cancelled".
func (s *Store) FailPendingJobForExecution(ctx context.Context, executionID, reason string) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE job_queue SET status = 'failed', error_message = ?, updated_at = ?
WHERE execution_id = ? AND status = 'pending'`, reason, nowMicros(), executionID)
	return err
}

func scanJob(row rowScanner) (*model.Job, error) {
	var j model.Job
	if err := row.Scan(&j.ID, &j.ExecutionID, &j.Priority, &j.ScheduledAt, &j.ClaimedAt, &j.ClaimedBy, &j.MaxRetries, &j.RetryCount, &j.Status, &j.ErrorMessage, &j.Payload, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	return &j, nil
}

func nowMicros() int64 {
	return time.Now().UnixMicro()
}
