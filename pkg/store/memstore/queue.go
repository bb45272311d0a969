package memstore

import (
	"context"
	"time"

	"github.com/openobserve/swisspipe-engine/pkg/model"
	"github.com/openobserve/swisspipe-engine/pkg/store"
)

// Enqueue mirrors the sqlite backend's semantics (see
// pkg/store/sqlite/queue.go) over an in-memory map guarded by s.mu.
func (s *Store) Enqueue(ctx context.Context, executionID string, priority int, payload []byte, maxRetries int) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := now()
	j := &model.Job{
		ID:          newID(),
		ExecutionID: executionID,
		Priority:    priority,
		ScheduledAt: n,
		MaxRetries:  maxRetries,
		RetryCount:  0,
		Status:      model.JobPending,
		Payload:     payload,
		CreatedAt:   n,
		UpdatedAt:   n,
	}
	s.jobs[j.ID] = j
	cp := *j
	return &cp, nil
}

func (s *Store) Claim(ctx context.Context, workerID string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := now()
	var best *model.Job
	for _, j := range s.jobs {
		if j.Status != model.JobPending || j.ScheduledAt > n {
			continue
		}
		if best == nil ||
			j.Priority > best.Priority ||
			(j.Priority == best.Priority && j.ScheduledAt < best.ScheduledAt) {
			best = j
		}
	}
	if best == nil {
		return nil, nil
	}
	claimedAt := now()
	best.Status = model.JobClaimed
	best.ClaimedAt = &claimedAt
	claimedBy := workerID
	best.ClaimedBy = &claimedBy
	best.UpdatedAt = claimedAt
	cp := *best
	return &cp, nil
}

func (s *Store) Complete(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return store.ErrNotFound
	}
	j.Status = model.JobCompleted
	j.UpdatedAt = now()
	return nil
}

// Fail implements the same exponential-backoff and dead-letter formula as
// pkg/store/sqlite/queue.go's Fail.
func (s *Store) Fail(ctx context.Context, jobID, errMsg string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return false, store.ErrNotFound
	}
	n := now()
	newRetryCount := j.RetryCount + 1
	if newRetryCount > j.MaxRetries {
		j.Status = model.JobDeadLetter
		j.RetryCount = newRetryCount
		j.ErrorMessage = errMsg
		j.ClaimedAt = nil
		j.ClaimedBy = nil
		j.UpdatedAt = n
		return false, nil
	}
	backoff := int64(1000)
	for i := 0; i < newRetryCount; i++ {
		backoff *= 2
	}
	j.Status = model.JobPending
	j.RetryCount = newRetryCount
	j.ErrorMessage = errMsg
	j.ScheduledAt = n + backoff*int64(time.Millisecond)/int64(time.Microsecond)
	j.ClaimedAt = nil
	j.ClaimedBy = nil
	j.UpdatedAt = n
	return true, nil
}

func (s *Store) CleanupStale(ctx context.Context, timeoutMicros int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now() - timeoutMicros
	n := 0
	for _, j := range s.jobs {
		if j.Status == model.JobClaimed && j.ClaimedAt != nil && *j.ClaimedAt < cutoff {
			j.Status = model.JobPending
			j.ClaimedAt = nil
			j.ClaimedBy = nil
			j.UpdatedAt = now()
			n++
		}
	}
	return n, nil
}

func (s *Store) Stats(ctx context.Context) (store.JobStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st store.JobStats
	for _, j := range s.jobs {
		switch j.Status {
		case model.JobPending:
			st.Pending++
		case model.JobClaimed:
			st.Claimed++
		case model.JobProcessing:
			st.Processing++
		case model.JobCompleted:
			st.Completed++
		case model.JobFailed:
			st.Failed++
		case model.JobDeadLetter:
			st.DeadLetter++
		}
	}
	return st, nil
}

func (s *Store) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (s *Store) ResetJob(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return store.ErrNotFound
	}
	n := now()
	j.Status = model.JobPending
	j.ScheduledAt = n
	j.RetryCount = 0
	j.ErrorMessage = ""
	j.ClaimedAt = nil
	j.ClaimedBy = nil
	j.UpdatedAt = n
	return nil
}

func (s *Store) CountPendingForExecution(ctx context.Context, executionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, j := range s.jobs {
		if j.ExecutionID == executionID &&
			(j.Status == model.JobPending || j.Status == model.JobClaimed || j.Status == model.JobProcessing) {
			n++
		}
	}
	return n, nil
}

func (s *Store) FailPendingJobForExecution(ctx context.Context, executionID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.ExecutionID == executionID && j.Status == model.JobPending {
			j.Status = model.JobFailed
			j.ErrorMessage = reason
			j.UpdatedAt = now()
		}
	}
	return nil
}
