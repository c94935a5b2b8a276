// Package metrics defines BatchOps's Prometheus instrumentation as a
// capability struct rather than package-level globals. Callers construct
// one *Metrics at startup and thread it explicitly into the scheduler,
// worker pool, pipeline executor, and incident writer.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every Prometheus collector BatchOps registers. It is safe
// for concurrent use; all fields are Prometheus collectors, which are
// themselves concurrency-safe.
type Metrics struct {
	// Scheduler / dispatch

	ScheduleFiresTotal *prometheus.CounterVec
	DispatchCycleLag   prometheus.Histogram
	QueueDepth         *prometheus.GaugeVec
	QueuePromotedTotal prometheus.Counter

	// Worker pool

	JobsClaimedTotal     *prometheus.CounterVec
	JobRunDuration       *prometheus.HistogramVec
	WorkersInFlight      prometheus.Gauge
	LeasesReclaimedTotal prometheus.Counter

	// Pipeline

	StageDuration     *prometheus.HistogramVec
	StageFailureTotal *prometheus.CounterVec

	// Incidents / known errors

	IncidentsOpenedTotal *prometheus.CounterVec
	AutoRetriesTotal     *prometheus.CounterVec
	AutoResolvedTotal    prometheus.Counter
}

// New constructs a Metrics instance and registers every collector against
// reg. Pass prometheus.NewRegistry() in tests to avoid polluting the
// process-wide default registry; pass prometheus.DefaultRegisterer in
// cmd/engine.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ScheduleFiresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "batchops",
			Name:      "schedule_fires_total",
			Help:      "Total cron fires dispatched, by job.",
		}, []string{"job_name"}),

		DispatchCycleLag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "batchops",
			Name:      "dispatch_cycle_duration_seconds",
			Help:      "Time taken for one scheduler loop tick.",
			Buckets:   prometheus.DefBuckets,
		}),

		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "batchops",
			Name:      "queue_depth",
			Help:      "Number of entries currently sitting in the queue.",
		}, []string{"partition"}), // "fifo" or "delayed"

		QueuePromotedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "batchops",
			Name:      "queue_promoted_total",
			Help:      "Total delayed entries promoted into the FIFO.",
		}),

		JobsClaimedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "batchops",
			Name:      "jobs_claimed_total",
			Help:      "Total queue entries claimed by a worker.",
		}, []string{"worker_id"}),

		JobRunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "batchops",
			Name:      "job_run_duration_seconds",
			Help:      "Duration of a full callable invocation.",
			Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"status"}),

		WorkersInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "batchops",
			Name:      "worker_jobs_in_flight",
			Help:      "Number of jobs currently being executed by the worker pool.",
		}),

		LeasesReclaimedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "batchops",
			Name:      "leases_reclaimed_total",
			Help:      "Total queue leases reclaimed after expiry.",
		}),

		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "batchops",
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Duration of one pipeline stage.",
			Buckets:   []float64{.05, .1, .5, 1, 5, 10, 30, 60, 300, 600},
		}, []string{"stage", "outcome"}),

		StageFailureTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "batchops",
			Name:      "pipeline_stage_failures_total",
			Help:      "Total pipeline stage failures, by stage and error kind.",
		}, []string{"stage", "kind"}),

		IncidentsOpenedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "batchops",
			Name:      "incidents_opened_total",
			Help:      "Total incidents opened, by category.",
		}, []string{"category"}),

		AutoRetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "batchops",
			Name:      "auto_retries_total",
			Help:      "Total known-error-governed auto-retries scheduled, by known error name.",
		}, []string{"known_error"}),

		AutoResolvedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "batchops",
			Name:      "auto_resolved_total",
			Help:      "Total incidents auto-resolved by a successful retry.",
		}),
	}

	reg.MustRegister(
		m.ScheduleFiresTotal,
		m.DispatchCycleLag,
		m.QueueDepth,
		m.QueuePromotedTotal,
		m.JobsClaimedTotal,
		m.JobRunDuration,
		m.WorkersInFlight,
		m.LeasesReclaimedTotal,
		m.StageDuration,
		m.StageFailureTotal,
		m.IncidentsOpenedTotal,
		m.AutoRetriesTotal,
		m.AutoResolvedTotal,
	)

	return m
}

// NewServer returns an *http.Server exposing /metrics over addr.
func NewServer(addr string, healthHandler http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if healthHandler != nil {
		mux.Handle("/healthz", healthHandler)
	}
	return &http.Server{Addr: addr, Handler: mux}
}
