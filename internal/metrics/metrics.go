// Package metrics exposes the run summary counters as prometheus
// metrics. The API server serves them at /metrics; the CLI registers
// them but never serves them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RecordsRead = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "trip_pipeline",
		Name:      "records_read_total",
		Help:      "Raw trip records read from input sources.",
	})

	RecordsValid = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "trip_pipeline",
		Name:      "records_valid_total",
		Help:      "Records that passed schema validation.",
	})

	RecordsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trip_pipeline",
		Name:      "records_rejected_total",
		Help:      "Records quarantined during read or validation.",
	}, []string{"reason"})

	DuplicatesCollapsed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "trip_pipeline",
		Name:      "duplicates_collapsed_total",
		Help:      "Duplicate trip records removed by latest-wins dedup.",
	})

	JoinMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "trip_pipeline",
		Name:      "join_misses_total",
		Help:      "Trips with no matching rider dimension entry.",
	})

	PartitionsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "trip_pipeline",
		Name:      "partitions_written_total",
		Help:      "Fact partitions replaced atomically.",
	})

	AggregateRows = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "trip_pipeline",
		Name:      "aggregate_rows_total",
		Help:      "Aggregate output rows written.",
	})

	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trip_pipeline",
		Name:      "runs_total",
		Help:      "Pipeline runs by final state.",
	}, []string{"state"})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "trip_pipeline",
		Name:      "run_duration_seconds",
		Help:      "End-to-end run duration.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	})
)

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
