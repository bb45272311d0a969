// Package resumption implements the startup reconciliation pass that
// restores in-flight state after a crash or restart, run once before
// workers begin (spec §4.10). Grounded on
// original_source/src/async_execution/resumption_service.rs's
// resume_interrupted_executions/determine_resume_point/
// reset_interrupted_step sequence.
package resumption

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/openobserve/swisspipe-engine/pkg/model"
	"github.com/openobserve/swisspipe-engine/pkg/queue"
	"github.com/openobserve/swisspipe-engine/pkg/store"
)

// RestoreFunc adapts the Delay Scheduler's or HTTP Loop Scheduler's own
// RestoreFromStartup method (their return shapes differ, so callers wrap
// them, e.g. `func(ctx) error { _, _, err := delaySched.RestoreFromStartup(ctx); return err }`);
// New takes one for delays and one for loops (spec §4.10 step 5).
type RestoreFunc func(ctx context.Context) error

// Service runs the one-time startup pass of spec §4.10.
type Service struct {
	executions store.ExecutionStore
	steps      store.StepStore
	queue      *queue.Queue
	delays     RestoreFunc
	loops      RestoreFunc
	log        *zap.Logger
}

func New(executions store.ExecutionStore, steps store.StepStore, q *queue.Queue, delays, loops RestoreFunc, log *zap.Logger) *Service {
	return &Service{executions: executions, steps: steps, queue: q, delays: delays, loops: loops, log: log}
}

// Run executes spec §4.10 in order: reconcile interrupted executions,
// reset stale jobs, then let each scheduler restore its own timers.
func (s *Service) Run(ctx context.Context, jobClaimTimeoutMicros int64) error {
	resumed, err := s.resumeInterruptedExecutions(ctx)
	if err != nil {
		return fmt.Errorf("resumption: reconcile executions: %w", err)
	}

	stale, err := s.queue.CleanupStale(ctx, jobClaimTimeoutMicros)
	if err != nil {
		return fmt.Errorf("resumption: reset stale jobs: %w", err)
	}

	if err := s.delays(ctx); err != nil {
		return fmt.Errorf("resumption: restore delays: %w", err)
	}
	if err := s.loops(ctx); err != nil {
		return fmt.Errorf("resumption: restore http loops: %w", err)
	}

	s.log.Info("resumption pass complete", zap.Int("executions_resumed", resumed), zap.Int("stale_jobs_reset", stale))
	return nil
}

// resumeInterruptedExecutions implements spec §4.10 steps 1-3.
func (s *Service) resumeInterruptedExecutions(ctx context.Context) (int, error) {
	running, err := s.executions.ListExecutionsByStatus(ctx, model.ExecutionRunning, model.ExecutionPending)
	if err != nil {
		return 0, err
	}
	if len(running) == 0 {
		return 0, nil
	}

	for _, exec := range running {
		resumeNodeID, interruptedStepID, err := s.determineResumePoint(ctx, exec.ID)
		if err != nil {
			return 0, fmt.Errorf("determine resume point for %s: %w", exec.ID, err)
		}

		exec.Status = model.ExecutionPending
		exec.CurrentNodeID = resumeNodeID
		if resumeNodeID == "" {
			exec.StartedAt = nil
		}
		if err := s.executions.UpdateExecution(ctx, exec); err != nil {
			return 0, err
		}

		if interruptedStepID != "" {
			if err := s.resetInterruptedStep(ctx, exec.ID, interruptedStepID); err != nil {
				return 0, err
			}
		}

		pending, err := s.queue.CountPendingForExecution(ctx, exec.ID)
		if err != nil {
			return 0, err
		}
		if pending > 0 {
			continue
		}

		if _, err := s.queue.Enqueue(ctx, exec.ID, 0, model.JobPayload{Type: model.PayloadWorkflowExecute}, 0); err != nil {
			return 0, err
		}
	}

	return len(running), nil
}

// determineResumePoint implements spec §4.10 step 1: the first pending
// step resumes as-is; the first running or failed step is reset and
// resumed; all-completed/skipped restarts from the beginning.
func (s *Service) determineResumePoint(ctx context.Context, executionID string) (resumeNodeID, interruptedStepID string, err error) {
	steps, err := s.steps.GetStepsByExecution(ctx, executionID)
	if err != nil {
		return "", "", err
	}

	for _, step := range steps {
		switch step.Status {
		case model.StepPending:
			return step.NodeID, "", nil
		case model.StepRunning, model.StepFailed:
			return step.NodeID, step.ID, nil
		default: // completed, skipped
			continue
		}
	}
	return "", "", nil
}

func (s *Service) resetInterruptedStep(ctx context.Context, executionID, stepID string) error {
	steps, err := s.steps.GetStepsByExecution(ctx, executionID)
	if err != nil {
		return err
	}
	for _, step := range steps {
		if step.ID != stepID {
			continue
		}
		step.Status = model.StepPending
		step.StartedAt = nil
		step.CompletedAt = nil
		step.ErrorMessage = ""
		return s.steps.UpdateStep(ctx, step)
	}
	return nil
}
