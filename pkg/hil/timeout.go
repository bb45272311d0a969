package hil

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/openobserve/swisspipe-engine/pkg/model"
)

// TimeoutProcessor is the singleton background loop that expires HilTasks
// whose timeout_at has passed, applying each task's timeout_action and
// emitting a synthetic hil_resumption job (spec §4.9). Grounded on
// original_source/src/async_execution/async_hil_service.rs's
// process_hil_response outline and the Delay Scheduler's own
// ticker-plus-mutex shape, since the original's timeout sweep has no
// direct Go analogue in the pack beyond "one guarded loop, one pass".
type TimeoutProcessor struct {
	coordinator *Coordinator
	interval    time.Duration
	log         *zap.Logger

	mu      chan struct{} // 1-buffered, acts as a non-reentrant lock
}

func NewTimeoutProcessor(c *Coordinator, interval time.Duration, log *zap.Logger) *TimeoutProcessor {
	mu := make(chan struct{}, 1)
	mu <- struct{}{}
	return &TimeoutProcessor{coordinator: c, interval: interval, log: log, mu: mu}
}

// Run ticks every interval until ctx is cancelled, sweeping expired tasks
// on each tick. A tick that is still running when the next one is due is
// skipped rather than overlapped.
func (p *TimeoutProcessor) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *TimeoutProcessor) tick(ctx context.Context) {
	select {
	case <-p.mu:
	default:
		return // previous sweep still running
	}
	defer func() { p.mu <- struct{}{} }()

	expired, err := p.coordinator.tasks.ListExpiredPending(ctx, time.Now().UnixMicro())
	if err != nil {
		p.log.Error("hil timeout sweep: list expired failed", zap.Error(err))
		return
	}
	if len(expired) == 0 {
		return
	}

	for _, task := range expired {
		if err := p.expireOne(ctx, task); err != nil {
			p.log.Error("hil timeout sweep: expire task failed", zap.String("task_id", task.ID), zap.Error(err))
			continue
		}
	}
	p.log.Info("hil timeout sweep complete", zap.Int("expired", len(expired)))
}

func (p *TimeoutProcessor) expireOne(ctx context.Context, task *model.HilTask) error {
	decision := task.TimeoutAction
	if decision == "" {
		decision = model.HilDenied
	}

	now := time.Now().UnixMicro()
	task.Status = decision
	task.ResponseReceivedAt = &now
	if err := p.coordinator.tasks.UpdateHilTask(ctx, task); err != nil {
		return err
	}

	payload := model.JobPayload{Type: model.PayloadHilResumption, HilTaskID: task.ID, Decision: string(decision)}
	_, err := p.coordinator.queue.Enqueue(ctx, task.ExecutionID, 100, payload, 3)
	return err
}
