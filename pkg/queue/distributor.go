package queue

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openobserve/swisspipe-engine/pkg/model"
)

// DistributorMetrics mirrors original_source's MpscMetrics, tracking the
// health of the single-consumer claim loop for operator dashboards.
type DistributorMetrics struct {
	mu                     sync.Mutex
	JobsDistributed        uint64
	JobsFailed             uint64
	PollingCycles          uint64
	LastDistributionMicros int64
}

func (m *DistributorMetrics) Snapshot() DistributorMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return DistributorMetrics{
		JobsDistributed:        m.JobsDistributed,
		JobsFailed:             m.JobsFailed,
		PollingCycles:          m.PollingCycles,
		LastDistributionMicros: m.LastDistributionMicros,
	}
}

// Distributor is the single consumer of the durable job queue: it alone
// claims rows from the store and pushes them onto an in-process channel
// for the worker pool, eliminating the thundering-herd problem of N
// workers independently racing to claim (spec §4.2, §9 Design Notes).
// Grounded on
// original_source/src/async_execution/mpsc_job_distributor.rs's
// MpscJobDistributor/start_consumer, with the tokio::sync::Mutex<()>
// global lock replaced by the claim-side mutex already held inside each
// store.JobQueueStore.Claim implementation.
type Distributor struct {
	store    claimer
	out      chan *model.Job
	workerID string
	log      *zap.Logger
	metrics  DistributorMetrics
}

type claimer interface {
	Claim(ctx context.Context, workerID string) (*model.Job, error)
}

// NewDistributor creates a Distributor whose output channel has the given
// buffer size. Buffering, not blocking, is the point: the single consumer
// should never stall behind a slow worker pool drain.
func NewDistributor(s claimer, workerID string, bufferSize int, log *zap.Logger) *Distributor {
	return &Distributor{
		store:    s,
		out:      make(chan *model.Job, bufferSize),
		workerID: workerID,
		log:      log,
	}
}

// Jobs returns the channel workers read claimed jobs from.
func (d *Distributor) Jobs() <-chan *model.Job { return d.out }

// Run polls the store at pollInterval, claiming at most one job per tick
// and pushing it onto the output channel, until ctx is cancelled (spec
// §4.2's "single consumer pulls jobs from database and distributes via
// channels"). Close(out) happens on return so workers ranging over Jobs()
// terminate cleanly.
func (d *Distributor) Run(ctx context.Context, pollInterval time.Duration) {
	defer close(d.out)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	d.log.Info("distributor started", zap.Duration("poll_interval", pollInterval))

	for {
		select {
		case <-ctx.Done():
			d.log.Info("distributor shutting down")
			return
		case <-ticker.C:
			d.metrics.mu.Lock()
			d.metrics.PollingCycles++
			d.metrics.mu.Unlock()

			if err := d.claimAndDistribute(ctx); err != nil {
				d.log.Error("claim cycle failed", zap.Error(err))
				d.metrics.mu.Lock()
				d.metrics.JobsFailed++
				d.metrics.mu.Unlock()
			}
		}
	}
}

func (d *Distributor) claimAndDistribute(ctx context.Context) error {
	job, err := d.store.Claim(ctx, d.workerID)
	if err != nil {
		return err
	}
	if job == nil {
		return nil
	}

	select {
	case d.out <- job:
		d.metrics.mu.Lock()
		d.metrics.JobsDistributed++
		d.metrics.LastDistributionMicros = time.Now().UnixMicro()
		d.metrics.mu.Unlock()
		d.log.Debug("job distributed", zap.String("job_id", job.ID), zap.String("execution_id", job.ExecutionID))
	case <-ctx.Done():
	}
	return nil
}

func (d *Distributor) Metrics() DistributorMetrics { return d.metrics.Snapshot() }
