// Package delay implements the Delay Scheduler: wall-clock wake timers
// that resume a suspended execution by writing a workflow_resume job when
// they fire (spec §4.7). Grounded on
// original_source/src/async_execution/delay_scheduler.rs, translated from
// tokio::spawn + JoinHandle cancellation to a goroutine per delay guarded
// by a context.CancelFunc, matching the teacher's own timer-select idiom
// in graph/engine.go.
package delay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openobserve/swisspipe-engine/pkg/model"
	"github.com/openobserve/swisspipe-engine/pkg/queue"
	"github.com/openobserve/swisspipe-engine/pkg/store"
)

const (
	minWait          = time.Second
	maxClampWait     = 30 * 24 * time.Hour
	maxDurationCeil  = 365 * 24 * time.Hour
	restoreSafetyMargin = 5 * time.Second
)

// Scheduler owns one in-memory cancel func per pending delay, alongside
// the durable ScheduledDelay row each represents.
type Scheduler struct {
	store store.DelayStore
	queue *queue.Queue
	log   *zap.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func New(s store.DelayStore, q *queue.Queue, log *zap.Logger) *Scheduler {
	return &Scheduler{store: s, queue: q, log: log, cancels: make(map[string]context.CancelFunc)}
}

// ScheduleDelay persists a ScheduledDelay row and arms a timer, satisfying
// pkg/worker/nodes.DelayScheduler (spec §4.6, §4.7 step 1-2).
func (s *Scheduler) ScheduleDelay(ctx context.Context, executionID, currentNodeID, nextNodeID string, duration time.Duration, state model.WorkflowEvent) (string, error) {
	if duration > maxDurationCeil {
		return "", fmt.Errorf("delay: duration %s exceeds 1-year ceiling", duration)
	}
	stateBytes, err := state.Marshal()
	if err != nil {
		return "", fmt.Errorf("delay: marshal workflow state: %w", err)
	}

	scheduledAt := time.Now().Add(duration)
	row := &model.ScheduledDelay{
		ExecutionID:   executionID,
		CurrentNodeID: currentNodeID,
		NextNodeID:    nextNodeID,
		ScheduledAt:   scheduledAt.UnixMicro(),
		WorkflowState: stateBytes,
		Status:        model.DelayPending,
	}
	if err := s.store.CreateDelay(ctx, row); err != nil {
		return "", fmt.Errorf("delay: create row: %w", err)
	}

	wait := clampWait(duration)
	s.arm(row.ID, wait)

	s.log.Info("delay scheduled",
		zap.String("delay_id", row.ID), zap.String("execution_id", executionID),
		zap.Duration("wait", wait))
	return row.ID, nil
}

// clampWait bounds the in-memory timer to [1s, 30d] regardless of the
// requested duration (spec §4.7 step 2).
func clampWait(d time.Duration) time.Duration {
	if d < minWait {
		return minWait
	}
	if d > maxClampWait {
		return maxClampWait
	}
	return d
}

func (s *Scheduler) arm(delayID string, wait time.Duration) {
	timerCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancels[delayID] = cancel
	s.mu.Unlock()

	go func() {
		defer s.removeHandle(delayID)
		select {
		case <-time.After(wait):
			s.fire(delayID)
		case <-timerCtx.Done():
			// cancelled
		}
	}()
}

func (s *Scheduler) removeHandle(delayID string) {
	s.mu.Lock()
	delete(s.cancels, delayID)
	s.mu.Unlock()
}

// fire implements spec §4.7 step 3: re-read, abort if no longer pending,
// flip to triggered, enqueue an immediate workflow_resume job.
func (s *Scheduler) fire(delayID string) {
	ctx := context.Background()
	ok, err := s.store.TriggerDelay(ctx, delayID)
	if err != nil {
		s.log.Error("delay trigger failed", zap.String("delay_id", delayID), zap.Error(err))
		return
	}
	if !ok {
		s.log.Debug("delay already processed", zap.String("delay_id", delayID))
		return
	}

	row, err := s.store.GetDelay(ctx, delayID)
	if err != nil {
		s.log.Error("delay reload failed", zap.String("delay_id", delayID), zap.Error(err))
		return
	}

	payload := model.JobPayload{
		Type:          model.PayloadWorkflowResume,
		NextNodeID:    row.NextNodeID,
		WorkflowState: row.WorkflowState,
	}
	if _, err := s.queue.Enqueue(ctx, row.ExecutionID, 1, payload, 3); err != nil {
		s.log.Error("delay resume enqueue failed", zap.String("delay_id", delayID), zap.Error(err))
		return
	}
	s.log.Info("delay fired, resume enqueued", zap.String("delay_id", delayID), zap.String("execution_id", row.ExecutionID), zap.String("next_node_id", row.NextNodeID))
}

// CancelDelay takes the in-memory handle first to avoid a race with the
// firing goroutine, then flips the row (spec §4.7 cancel_delay).
func (s *Scheduler) CancelDelay(ctx context.Context, delayID string) error {
	s.mu.Lock()
	cancel, had := s.cancels[delayID]
	delete(s.cancels, delayID)
	s.mu.Unlock()

	ok, err := s.store.CancelDelay(ctx, delayID)
	if err != nil {
		if had {
			s.restoreHandle(delayID, cancel)
		}
		return err
	}
	if !ok {
		// Already triggered/cancelled; put the handle back if it existed.
		if had {
			s.restoreHandle(delayID, cancel)
		}
		return nil
	}
	if had {
		cancel()
	}
	return nil
}

func (s *Scheduler) restoreHandle(delayID string, cancel context.CancelFunc) {
	s.mu.Lock()
	s.cancels[delayID] = cancel
	s.mu.Unlock()
}

// CancelDelaysForExecution cancels every pending delay owned by an
// execution, e.g. when it is externally cancelled (spec §4.7).
func (s *Scheduler) CancelDelaysForExecution(ctx context.Context, executionID string) error {
	return s.store.CancelDelaysForExecution(ctx, executionID)
}

// RestoreFromStartup re-arms every pending delay on process start. A delay
// whose scheduled_at is within restoreSafetyMargin of now is treated as
// overdue and triggered immediately instead of timer-armed, avoiding a
// race between "restore" and "fire" (spec §4.7 "Restore on startup").
func (s *Scheduler) RestoreFromStartup(ctx context.Context) (restored, triggered int, err error) {
	pending, err := s.store.ListPendingDelays(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("delay: list pending: %w", err)
	}

	now := time.Now()
	for _, row := range pending {
		scheduledAt := time.UnixMicro(row.ScheduledAt)
		if scheduledAt.Sub(now) <= restoreSafetyMargin {
			s.fire(row.ID)
			triggered++
			continue
		}
		s.arm(row.ID, clampWait(scheduledAt.Sub(now)))
		restored++
	}

	s.log.Info("delay restoration complete", zap.Int("restored", restored), zap.Int("triggered", triggered))
	return restored, triggered, nil
}
