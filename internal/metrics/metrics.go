package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Worker outcome metrics
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "userfire_jobs_processed_total",
		Help: "Total number of envelopes processed, by resulting state",
	}, []string{"category", "state"})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "userfire_job_duration_seconds",
		Help:    "Time spent inside a processor",
		Buckets: prometheus.DefBuckets,
	}, []string{"category"})

	DequeueErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "userfire_dequeue_errors_total",
		Help: "Total number of failed dequeue calls",
	}, []string{"category"})

	// Producer and maintenance metrics
	EnqueueFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "userfire_enqueue_failures_total",
		Help: "Total number of envelopes that could not be enqueued after commit",
	}, []string{"category"})

	LeasesRecovered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "userfire_leases_recovered_total",
		Help: "Total number of expired leases returned to pending",
	})

	CompletedPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "userfire_completed_purged_total",
		Help: "Total number of completed envelopes removed by retention",
	})
)
