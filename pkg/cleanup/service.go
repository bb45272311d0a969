// Package cleanup implements retention-based deletion of old, terminal
// executions (spec §4.10, "Cleanup Service"). Grounded on
// original_source/src/async_execution/cleanup_service.rs's
// run_cleanup_loop/perform_cleanup/calculate_cutoff_time, translated
// from its AtomicBool-guarded JoinHandle into a ctx-cancelled ticker
// goroutine matching pkg/hil.TimeoutProcessor's shape.
package cleanup

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/openobserve/swisspipe-engine/pkg/store"
)

// Service periodically deletes executions (and, via foreign-key cascade,
// their steps) older than its retention window.
type Service struct {
	executions store.ExecutionStore
	retention  time.Duration
	interval   time.Duration
	log        *zap.Logger
}

func New(executions store.ExecutionStore, retention, interval time.Duration, log *zap.Logger) *Service {
	return &Service{executions: executions, retention: retention, interval: interval, log: log}
}

// Run ticks every interval until ctx is cancelled, deleting executions
// whose completed_at predates the retention window.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Service) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.retention).UnixMicro()
	deleted, err := s.executions.DeleteExecutionsOlderThan(ctx, cutoff)
	if err != nil {
		s.log.Error("cleanup sweep failed", zap.Error(err))
		return
	}
	if deleted > 0 {
		s.log.Info("cleanup sweep complete", zap.Int64("deleted_executions", deleted))
	}
}
