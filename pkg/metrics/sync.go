package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// Sync runs by terminal status (completed, failed)
	SyncRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricesync_runs_total",
			Help: "Count of competitor sync runs by terminal status.",
		},
		[]string{"status"},
	)

	// Offers produced per competitor per run
	OffersScrapedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricesync_offers_scraped_total",
			Help: "Count of normalized offers scraped, by competitor.",
		},
		[]string{"competitor"},
	)

	// Per-key source failures (skipped SKUs / handles)
	SourceErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricesync_source_errors_total",
			Help: "Count of per-key source errors, by competitor.",
		},
		[]string{"competitor"},
	)

	// Historical rows written to the append-only tables
	RowsWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricesync_rows_written_total",
			Help: "Count of historical rows written, by table.",
		},
		[]string{"table"},
	)

	// Batch write attempts retried on a transient backend error
	BatchRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pricesync_batch_retries_total",
			Help: "Count of batch writes retried on a transient error.",
		},
	)

	// End-to-end run latency
	RunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pricesync_run_duration_seconds",
		Help:    "Duration of a full competitor sync run.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	})
)

func Init() {
	prometheus.MustRegister(
		SyncRunsTotal,
		OffersScrapedTotal,
		SourceErrorsTotal,
		RowsWrittenTotal,
		BatchRetriesTotal,
		RunDuration,
	)
}
