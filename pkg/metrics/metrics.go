// Package metrics exposes Prometheus instrumentation for the engine,
// adapted from the teacher's graph/metrics.go PrometheusMetrics: the same
// registry/factory construction and namespacing idiom, re-labeled for job
// queue depth, worker throughput, and node latency instead of generic
// graph concurrency.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects all Prometheus series emitted by the engine, namespaced
// "swisspipe".
type Metrics struct {
	jobsPending    prometheus.Gauge
	jobsProcessing prometheus.Gauge
	workersActive  prometheus.Gauge

	nodeLatency   *prometheus.HistogramVec
	jobRetries    *prometheus.CounterVec
	jobDeadLetter *prometheus.CounterVec
	distributed   prometheus.Counter

	delaysActive     prometheus.Gauge
	httpLoopsRunning prometheus.Gauge
	hilTasksPending  prometheus.Gauge
}

// New builds and registers every series against registry. Pass
// prometheus.DefaultRegisterer for the global registry, or a fresh
// prometheus.NewRegistry() for test isolation.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	f := promauto.With(registry)

	return &Metrics{
		jobsPending: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "swisspipe", Name: "jobs_pending",
			Help: "Number of jobs currently pending on the durable queue",
		}),
		jobsProcessing: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "swisspipe", Name: "jobs_processing",
			Help: "Number of jobs currently claimed or processing",
		}),
		workersActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "swisspipe", Name: "workers_active",
			Help: "Number of worker goroutines currently executing a job",
		}),
		nodeLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "swisspipe", Name: "node_latency_ms",
			Help:    "Node execution duration in milliseconds",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 60000},
		}, []string{"node_type", "status"}),
		jobRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "swisspipe", Name: "job_retries_total",
			Help: "Cumulative job retry attempts",
		}, []string{"payload_type"}),
		jobDeadLetter: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "swisspipe", Name: "jobs_dead_letter_total",
			Help: "Jobs that exhausted retries and moved to dead_letter",
		}, []string{"payload_type"}),
		distributed: f.NewCounter(prometheus.CounterOpts{
			Namespace: "swisspipe", Name: "jobs_distributed_total",
			Help: "Jobs claimed and handed off by the distributor",
		}),
		delaysActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "swisspipe", Name: "delays_active",
			Help: "Pending scheduled delays with a live in-memory timer",
		}),
		httpLoopsRunning: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "swisspipe", Name: "http_loops_running",
			Help: "HTTP polling loops currently in status running",
		}),
		hilTasksPending: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "swisspipe", Name: "hil_tasks_pending",
			Help: "Human-in-the-loop tasks awaiting a decision",
		}),
	}
}

func (m *Metrics) SetJobsPending(n float64)    { m.jobsPending.Set(n) }
func (m *Metrics) SetJobsProcessing(n float64) { m.jobsProcessing.Set(n) }
func (m *Metrics) SetWorkersActive(n float64)  { m.workersActive.Set(n) }
func (m *Metrics) SetDelaysActive(n float64)   { m.delaysActive.Set(n) }
func (m *Metrics) SetHTTPLoopsRunning(n float64) { m.httpLoopsRunning.Set(n) }
func (m *Metrics) SetHilTasksPending(n float64)  { m.hilTasksPending.Set(n) }

func (m *Metrics) RecordNodeLatency(nodeType string, d time.Duration, status string) {
	m.nodeLatency.WithLabelValues(nodeType, status).Observe(float64(d.Milliseconds()))
}

func (m *Metrics) IncJobRetry(payloadType string)     { m.jobRetries.WithLabelValues(payloadType).Inc() }
func (m *Metrics) IncJobDeadLetter(payloadType string) { m.jobDeadLetter.WithLabelValues(payloadType).Inc() }
func (m *Metrics) IncDistributed()                     { m.distributed.Inc() }
