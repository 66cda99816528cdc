package vectorstore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpsertTotal counts upsert calls.
	// Labels: provider, result (success, error)
	UpsertTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reporover",
			Subsystem: "vectorstore",
			Name:      "upserts_total",
			Help:      "Total number of upsert operations",
		},
		[]string{"provider", "result"},
	)

	// RecordsWritten counts vectors written.
	RecordsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reporover",
			Subsystem: "vectorstore",
			Name:      "records_written_total",
			Help:      "Total number of vectors written",
		},
		[]string{"provider"},
	)

	// QueryDuration tracks how long similarity queries take.
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "reporover",
			Subsystem: "vectorstore",
			Name:      "query_duration_seconds",
			Help:      "Duration of similarity queries in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider"},
	)
)

func recordUpsert(provider string, n int, err error) {
	if err != nil {
		UpsertTotal.WithLabelValues(provider, "error").Inc()
		return
	}
	UpsertTotal.WithLabelValues(provider, "success").Inc()
	RecordsWritten.WithLabelValues(provider).Add(float64(n))
}

func observeQuery(provider string, start time.Time) {
	QueryDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
}
