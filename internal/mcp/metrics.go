package mcp

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fyrsmithlabs/reporover/internal/conversation"
	"github.com/fyrsmithlabs/reporover/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const meterName = "github.com/fyrsmithlabs/reporover/internal/mcp"

// Outcomes recorded for successful tool calls. Failed calls record
// outcomeError with a reason.
const (
	outcomeIngested  = "ingested"
	outcomeSkipped   = "skipped"
	outcomeAnswered  = "answered"
	outcomeNoContext = "no_context"
	outcomeListed    = "listed"
	outcomeFound     = "found"
	outcomeUnknown   = "unknown_repository"
	outcomeError     = "error"
)

// toolMetrics counts repo_* calls by outcome, times them, and totals the
// vectors that repo_ingest wrote.
type toolMetrics struct {
	calls    metric.Int64Counter
	duration metric.Float64Histogram
	vectors  metric.Int64Counter
}

func newToolMetrics(meter metric.Meter, logger *zap.Logger) *toolMetrics {
	m := &toolMetrics{}
	var err error

	m.calls, err = meter.Int64Counter("reporover.mcp.tool.calls",
		metric.WithDescription("MCP tool calls by tool, outcome and error reason"),
		metric.WithUnit("{call}"))
	if err != nil {
		logger.Warn("failed to create tool call counter", zap.Error(err))
	}

	m.duration, err = meter.Float64Histogram("reporover.mcp.tool.duration",
		metric.WithDescription("MCP tool call duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.1, 0.5, 1, 5, 15, 60, 180, 600))
	if err != nil {
		logger.Warn("failed to create tool duration histogram", zap.Error(err))
	}

	m.vectors, err = meter.Int64Counter("reporover.mcp.ingest.vectors",
		metric.WithDescription("Vectors written by repo_ingest"),
		metric.WithUnit("{vector}"))
	if err != nil {
		logger.Warn("failed to create vector counter", zap.Error(err))
	}
	return m
}

func (m *toolMetrics) record(ctx context.Context, tool, outcome string, elapsed time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("tool", tool),
		attribute.String("outcome", outcome),
	}
	if err != nil {
		attrs = append(attrs, attribute.String("reason", categorizeError(err)))
	}
	if m.calls != nil {
		m.calls.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if m.duration != nil {
		m.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attrs[:2]...))
	}
}

func (m *toolMetrics) addVectors(ctx context.Context, n int) {
	if m.vectors != nil && n > 0 {
		m.vectors.Add(ctx, int64(n))
	}
}

// categorizeError maps a tool error to a low-cardinality reason.
func categorizeError(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, repository.ErrInvalidRepositoryURL), errors.Is(err, repository.ErrMissingInput):
		return "validation_error"
	case errors.Is(err, conversation.ErrNotFound):
		return "not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "rate limit"):
		return "rate_limited"
	case strings.Contains(errStr, "upsert") || strings.Contains(errStr, "embedding"):
		return "storage_error"
	case strings.Contains(errStr, "generat"):
		return "generation_error"
	default:
		return "internal_error"
	}
}
