package http

import (
	"context"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const meterName = "github.com/fyrsmithlabs/reporover/internal/http"

// Latency buckets span a health check up to a cold ingestion of a large
// repository.
var latencyBuckets = []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 15, 60, 180, 600}

// routeMetrics records API traffic per registered route and the number of
// open progress streams.
type routeMetrics struct {
	requests metric.Int64Counter
	latency  metric.Float64Histogram
	streams  metric.Int64UpDownCounter
}

func newRouteMetrics(meter metric.Meter, logger *zap.Logger) *routeMetrics {
	m := &routeMetrics{}
	var err error

	m.requests, err = meter.Int64Counter("reporover.http.requests",
		metric.WithDescription("API requests by route, method and status class"),
		metric.WithUnit("{request}"))
	if err != nil {
		logger.Warn("failed to create request counter", zap.Error(err))
	}

	m.latency, err = meter.Float64Histogram("reporover.http.request_duration",
		metric.WithDescription("Time to answer an API request, including ingestion and generation"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...))
	if err != nil {
		logger.Warn("failed to create latency histogram", zap.Error(err))
	}

	m.streams, err = meter.Int64UpDownCounter("reporover.http.progress_streams",
		metric.WithDescription("Open /api/progress event streams"),
		metric.WithUnit("{stream}"))
	if err != nil {
		logger.Warn("failed to create stream gauge", zap.Error(err))
	}
	return m
}

// middleware labels each request by its route pattern, never the raw URL,
// so repository names in query strings do not become series.
func (m *routeMetrics) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil && !c.Response().Committed {
				// The error handler has not written the response yet.
				status, _ = statusFor(err)
			}
			attrs := metric.WithAttributes(
				attribute.String("route", routeLabel(c.Path())),
				attribute.String("method", c.Request().Method),
				attribute.String("status_class", statusClass(status)),
			)

			ctx := c.Request().Context()
			if m.requests != nil {
				m.requests.Add(ctx, 1, attrs)
			}
			if m.latency != nil {
				m.latency.Record(ctx, time.Since(start).Seconds(), attrs)
			}
			return err
		}
	}
}

func (m *routeMetrics) streamOpened(ctx context.Context) {
	if m.streams != nil {
		m.streams.Add(ctx, 1)
	}
}

func (m *routeMetrics) streamClosed(ctx context.Context) {
	if m.streams != nil {
		m.streams.Add(ctx, -1)
	}
}

func routeLabel(path string) string {
	if path == "" {
		return "unmatched"
	}
	return path
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}
