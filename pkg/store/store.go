// Package store defines the persistence interfaces for every entity in
// model, generalized from the teacher's graph/store/store.go
// (Store[S]{SaveStep,LoadLatest,SaveCheckpoint,...}) into one interface per
// concern so each backend (sqlite, mysql, postgres, memstore) can share a
// schema shape without forcing a single god-interface.
package store

import (
	"context"
	"errors"

	"github.com/openobserve/swisspipe-engine/pkg/model"
)

// ErrNotFound is returned by Get-style lookups that find no matching row.
var ErrNotFound = errors.New("store: not found")

// WorkflowStore is read-only access to workflow definitions (spec §3:
// "Workflow (read-only to the core)").
type WorkflowStore interface {
	GetWorkflow(ctx context.Context, id string) (*model.Workflow, error)
}

// ExecutionStore persists Execution rows.
type ExecutionStore interface {
	CreateExecution(ctx context.Context, e *model.Execution) error
	GetExecution(ctx context.Context, id string) (*model.Execution, error)
	UpdateExecution(ctx context.Context, e *model.Execution) error
	ListRecentExecutions(ctx context.Context, status model.ExecutionStatus, limit, offset int) ([]*model.Execution, error)
	ListExecutionsByWorkflow(ctx context.Context, workflowID string, status model.ExecutionStatus, limit, offset int) ([]*model.Execution, error)
	ListExecutionsByStatus(ctx context.Context, statuses ...model.ExecutionStatus) ([]*model.Execution, error)
	DeleteExecutionsOlderThan(ctx context.Context, cutoffMicros int64) (int64, error)
}

// StepStore persists Step rows, scoped to one Execution.
type StepStore interface {
	CreateStep(ctx context.Context, s *model.Step) error
	UpdateStep(ctx context.Context, s *model.Step) error
	GetStepsByExecution(ctx context.Context, executionID string) ([]*model.Step, error)
	GetLatestStep(ctx context.Context, executionID, nodeID string) (*model.Step, error)
}

// JobQueueStore persists Job rows and implements the claim protocol of
// spec §4.1.
type JobQueueStore interface {
	Enqueue(ctx context.Context, executionID string, priority int, payload []byte, maxRetries int) (*model.Job, error)
	Claim(ctx context.Context, workerID string) (*model.Job, error)
	Complete(ctx context.Context, jobID string) error
	Fail(ctx context.Context, jobID string, errMsg string) (willRetry bool, err error)
	CleanupStale(ctx context.Context, timeoutMicros int64) (int, error)
	Stats(ctx context.Context) (JobStats, error)
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
	ResetJob(ctx context.Context, jobID string) error // operator resubmit: pending, scheduled_at=now
	CountPendingForExecution(ctx context.Context, executionID string) (int, error)
	FailPendingJobForExecution(ctx context.Context, executionID, reason string) error
}

// JobStats is the result of JobQueueStore.Stats (spec §6 get_worker_pool_stats).
type JobStats struct {
	Pending    int64
	Claimed    int64
	Processing int64
	Completed  int64
	Failed     int64
	DeadLetter int64
}

// DelayStore persists ScheduledDelay rows (spec §4.7).
type DelayStore interface {
	CreateDelay(ctx context.Context, d *model.ScheduledDelay) error
	GetDelay(ctx context.Context, id string) (*model.ScheduledDelay, error)
	TriggerDelay(ctx context.Context, id string) (bool, error) // false if no longer pending
	CancelDelay(ctx context.Context, id string) (bool, error)
	CancelDelaysForExecution(ctx context.Context, executionID string) error
	ListPendingDelays(ctx context.Context) ([]*model.ScheduledDelay, error)
}

// HTTPLoopStore persists HttpLoopState rows (spec §4.8).
type HTTPLoopStore interface {
	CreateLoop(ctx context.Context, l *model.HttpLoopState) error
	GetLoop(ctx context.Context, id string) (*model.HttpLoopState, error)
	UpdateLoop(ctx context.Context, l *model.HttpLoopState) error
	ListDueLoops(ctx context.Context, nowMicros int64) ([]*model.HttpLoopState, error)
	ListRunningLoops(ctx context.Context) ([]*model.HttpLoopState, error)
}

// HilTaskStore persists HilTask rows (spec §4.9).
type HilTaskStore interface {
	CreateHilTask(ctx context.Context, t *model.HilTask) (created bool, task *model.HilTask, err error) // dedup on NodeExecutionID
	GetHilTask(ctx context.Context, id string) (*model.HilTask, error)
	UpdateHilTask(ctx context.Context, t *model.HilTask) error
	ListExpiredPending(ctx context.Context, nowMicros int64) ([]*model.HilTask, error)
}

// Store is the union interface a backend implements; components depend on
// the narrower interfaces above.
type Store interface {
	WorkflowStore
	ExecutionStore
	StepStore
	JobQueueStore
	DelayStore
	HTTPLoopStore
	HilTaskStore
}
