package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics must be global for registration
var (
	// JobsTotal tracks crawl and scoring jobs by outcome
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toxicrawl_jobs_total",
			Help: "Total number of jobs processed",
		},
		[]string{"type", "status"}, // status: success, failed, skipped
	)

	// JobDuration measures job execution duration in seconds
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "toxicrawl_job_duration_seconds",
			Help:    "Job execution duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 0.1s to ~100s
		},
		[]string{"type", "status"},
	)

	// ItemsFetched counts items seen in remote snapshots
	ItemsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toxicrawl_items_fetched_total",
			Help: "Total number of remote items fetched",
		},
		[]string{"collection", "kind"}, // kind: thread, post, subreddit_post, comment
	)

	// ItemsInserted counts rows that survived dedup and were written
	ItemsInserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toxicrawl_items_inserted_total",
			Help: "Total number of new rows inserted after dedup",
		},
		[]string{"collection", "kind"},
	)

	// ItemsChanged counts items the changeset detector flagged per cycle
	ItemsChanged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toxicrawl_items_changed_total",
			Help: "Total number of items reported new or changed by change detection",
		},
		[]string{"collection"},
	)

	// ScoresTotal counts scoring outcomes per collection
	ScoresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toxicrawl_scores_total",
			Help: "Total number of scoring attempts by outcome",
		},
		[]string{"collection", "status"}, // status: scored, skipped, failed
	)

	// WatermarkSize tracks the number of watermark entries carried per collection
	WatermarkSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "toxicrawl_watermark_entries",
			Help: "Watermark entries carried into the next crawl cycle",
		},
		[]string{"collection"},
	)

	// ErrorsTotal counts errors by component
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toxicrawl_errors_total",
			Help: "Total errors by component and type",
		},
		[]string{"component", "error_type"},
	)
)

// RecordJob records a completed job with its duration in seconds.
func RecordJob(jobType, status string, seconds float64) {
	JobsTotal.WithLabelValues(jobType, status).Inc()
	JobDuration.WithLabelValues(jobType, status).Observe(seconds)
}

// RecordFetched records items seen in a remote snapshot.
func RecordFetched(collection, kind string, n int) {
	ItemsFetched.WithLabelValues(collection, kind).Add(float64(n))
}

// RecordInserted records rows written after dedup.
func RecordInserted(collection, kind string, n int) {
	ItemsInserted.WithLabelValues(collection, kind).Add(float64(n))
}

// RecordChanged records changeset detector output.
func RecordChanged(collection string, n int) {
	ItemsChanged.WithLabelValues(collection).Add(float64(n))
}

// RecordScore records one scoring outcome.
func RecordScore(collection, status string) {
	ScoresTotal.WithLabelValues(collection, status).Inc()
}

// SetWatermarkEntries records the watermark size carried into the next cycle.
func SetWatermarkEntries(collection string, n int) {
	WatermarkSize.WithLabelValues(collection).Set(float64(n))
}

// RecordError records an error occurrence.
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
