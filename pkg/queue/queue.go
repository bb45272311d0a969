// Package queue implements the durable job queue (spec §3, §4.1) and the
// single-consumer distributor that feeds the worker pool (spec §4.2).
// Grounded on original_source/src/database/job_queue.rs (schema, status
// enum, retry semantics) and
// original_source/src/async_execution/mpsc_job_distributor.rs (the
// single-consumer pattern, now expressed as a Go goroutine with a mutex
// instead of a static tokio::Mutex).
package queue

import (
	"context"
	"encoding/json"

	"github.com/openobserve/swisspipe-engine/pkg/model"
	"github.com/openobserve/swisspipe-engine/pkg/store"
)

// Queue is a thin facade over store.JobQueueStore, giving callers (the
// ingress layer, the HIL coordinator, the resumption service) one place to
// enqueue work without reaching into the store package directly.
type Queue struct {
	store store.JobQueueStore
}

func New(s store.JobQueueStore) *Queue {
	return &Queue{store: s}
}

// Enqueue inserts a pending Job carrying payload (spec §4.1, §4.3). Higher
// priority values are claimed first; equal priority breaks ties by
// scheduled_at ascending (FIFO).
func (q *Queue) Enqueue(ctx context.Context, executionID string, priority int, payload model.JobPayload, maxRetries int) (*model.Job, error) {
	body, err := marshalPayload(payload)
	if err != nil {
		return nil, err
	}
	return q.store.Enqueue(ctx, executionID, priority, body, maxRetries)
}

func (q *Queue) Complete(ctx context.Context, jobID string) error {
	return q.store.Complete(ctx, jobID)
}

// Fail records a processing error and applies spec §4.1's retry formula:
// scheduled_at = now + 1000*2^retry_count ms, dead-lettering once
// retry_count exceeds max_retries.
func (q *Queue) Fail(ctx context.Context, jobID, errMsg string) (willRetry bool, err error) {
	return q.store.Fail(ctx, jobID, errMsg)
}

func (q *Queue) Stats(ctx context.Context) (store.JobStats, error) {
	return q.store.Stats(ctx)
}

// CleanupStale reclaims jobs whose worker died mid-processing (spec §4.1
// testable invariant 6), returning them to pending.
func (q *Queue) CleanupStale(ctx context.Context, timeoutMicros int64) (int, error) {
	return q.store.CleanupStale(ctx, timeoutMicros)
}

func (q *Queue) ResetJob(ctx context.Context, jobID string) error {
	return q.store.ResetJob(ctx, jobID)
}

func (q *Queue) CountPendingForExecution(ctx context.Context, executionID string) (int, error) {
	return q.store.CountPendingForExecution(ctx, executionID)
}

func (q *Queue) FailPendingJobForExecution(ctx context.Context, executionID, reason string) error {
	return q.store.FailPendingJobForExecution(ctx, executionID, reason)
}

func marshalPayload(p model.JobPayload) ([]byte, error) {
	return json.Marshal(p)
}
