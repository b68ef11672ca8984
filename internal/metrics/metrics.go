package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/notifyhub/pusha/internal/domain"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	JobsSubmitted    prometheus.Counter
	JobsResolved     *prometheus.CounterVec
	DispatchLatency  *prometheus.HistogramVec
	QueueWait        prometheus.Histogram
	WorkerRecoveries prometheus.Counter
}

// New registers all instruments with reg. A custom registry keeps tests
// isolated from prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		JobsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "push_jobs_submitted_total",
			Help: "Total number of jobs accepted by a dispatch queue.",
		}),

		JobsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "push_jobs_resolved_total",
			Help: "Total number of jobs resolved, by outcome status.",
		}, []string{"status"}),

		DispatchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "push_dispatch_seconds",
			Help:    "Processing latency from dequeue to outcome, by outcome status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),

		QueueWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "push_queue_wait_seconds",
			Help:    "Time a job spent in its dispatch queue before a worker took it.",
			Buckets: prometheus.DefBuckets,
		}),

		WorkerRecoveries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "push_worker_recoveries_total",
			Help: "Number of panics recovered while processing a job.",
		}),
	}

	reg.MustRegister(
		m.JobsSubmitted,
		m.JobsResolved,
		m.DispatchLatency,
		m.QueueWait,
		m.WorkerRecoveries,
	)

	return m
}

// RegisterQueueDepth exposes the depth of every shard as a gauge read at
// scrape time. depth is called with the shard index.
func RegisterQueueDepth(reg prometheus.Registerer, shards int, depth func(shard int) int) {
	for i := 0; i < shards; i++ {
		shard := i
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "push_queue_depth",
			Help:        "Current number of jobs buffered in a dispatch queue shard.",
			ConstLabels: prometheus.Labels{"shard": strconv.Itoa(shard)},
		}, func() float64 { return float64(depth(shard)) }))
	}
}

// WorkerHooks returns the metric callbacks expected by worker.MetricHooks.
// Keeps the prometheus calls out of the worker package.
func (m *Metrics) WorkerHooks() (
	onResolved func(domain.Outcome),
	onDequeued func(wait time.Duration),
	onRecovered func(),
) {
	onResolved = func(o domain.Outcome) {
		m.JobsResolved.WithLabelValues(string(o.Status)).Inc()
		m.DispatchLatency.WithLabelValues(string(o.Status)).Observe(o.Latency.Seconds())
	}
	onDequeued = func(wait time.Duration) {
		m.QueueWait.Observe(wait.Seconds())
	}
	onRecovered = func() {
		m.WorkerRecoveries.Inc()
	}
	return
}
