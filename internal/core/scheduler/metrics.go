package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// jobsCurrentlyRunning tracks the number of jobs currently being executed
	jobsCurrentlyRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "listscheduler_jobs_currently_running",
		Help: "The number of jobs currently being executed",
	})

	// jobRunsTotal counts finished job runs by outcome
	jobRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listscheduler_job_runs_total",
		Help: "Finished job runs by job name and outcome",
	}, []string{"job", "outcome"})

	// jobRunsSkipped counts trigger firings dropped by the overlap guard
	jobRunsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listscheduler_job_runs_skipped_total",
		Help: "Trigger firings skipped because the job was already running",
	}, []string{"job"})

	// jobRunDuration observes handler execution time
	jobRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "listscheduler_job_run_duration_seconds",
		Help:    "Job handler execution time in seconds",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"job"})
)
