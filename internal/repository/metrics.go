package repository

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("reporover.repository")

const (
	stageCrawled = "crawled"
	stageFetched = "fetched"
	stageFailed  = "failed"
	stageIndexed = "indexed"
)

var (
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reporover",
			Subsystem: "ingest",
			Name:      "runs_total",
			Help:      "Ingestion runs by result (ok, skipped, failed)",
		},
		[]string{"result"},
	)

	filesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reporover",
			Subsystem: "ingest",
			Name:      "files_total",
			Help:      "Files seen per pipeline stage",
		},
		[]string{"stage"},
	)

	chunksDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "reporover",
			Subsystem: "ingest",
			Name:      "chunks_dropped_total",
			Help:      "Chunks dropped because embedding failed",
		},
	)

	secretsRedacted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "reporover",
			Subsystem: "ingest",
			Name:      "secrets_redacted_total",
			Help:      "Secrets replaced before chunking",
		},
	)

	runDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "reporover",
			Subsystem: "ingest",
			Name:      "run_duration_seconds",
			Help:      "Wall time of completed ingestion runs",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		},
	)
)
