package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func attr(set attribute.Set, key string) string {
	v, _ := set.Value(attribute.Key(key))
	return v.AsString()
}

func TestRouteMetrics_LabelsByRoute(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	f := newMeteredFixture(t, nil, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter(meterName))

	f.do(http.MethodGet, "/health", "", nil)
	f.do(http.MethodPost, "/api/ingest", `{"repoUrl":"octo/repo"}`, nil)
	f.do(http.MethodGet, "/api/history?repoUrl=octo/a", "", nil)
	f.do(http.MethodGet, "/api/history?repoUrl=octo/b", "", nil)
	f.do(http.MethodPost, "/api/chat", `{"question":"why?"}`, nil)
	f.chat.err = errors.New("generating answer: quota")
	f.do(http.MethodPost, "/api/chat", `{"question":"why?","repoUrl":"octo/repo"}`, nil)
	f.do(http.MethodGet, "/api/octo/repo", "", nil)

	data := collect(t, reader)
	sum, ok := data["reporover.http.requests"].(metricdata.Sum[int64])
	require.True(t, ok)

	got := map[string]int64{}
	for _, dp := range sum.DataPoints {
		key := attr(dp.Attributes, "method") + " " + attr(dp.Attributes, "route") + " " + attr(dp.Attributes, "status_class")
		got[key] += dp.Value
	}
	assert.Equal(t, map[string]int64{
		"GET /health 2xx":      1,
		"POST /api/ingest 2xx": 1,
		"GET /api/history 2xx": 2,
		"POST /api/chat 4xx":   1,
		"POST /api/chat 5xx":   1,
		"GET /api/* 4xx":       1,
	}, got, "query strings and unknown paths never become labels")

	hist, ok := data["reporover.http.request_duration"].(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.EqualValues(t, 7, count)
}

func TestRouteMetrics_ProgressStreams(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	f := newMeteredFixture(t, nil, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter(meterName))
	srv := httptest.NewServer(f.server.Echo())
	defer srv.Close()

	open := func() int64 {
		sum, ok := collect(t, reader)["reporover.http.progress_streams"].(metricdata.Sum[int64])
		if !ok {
			return 0
		}
		var n int64
		for _, dp := range sum.DataPoints {
			n += dp.Value
		}
		return n
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/progress", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Eventually(t, func() bool { return open() == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.Eventually(t, func() bool { return open() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestStatusClass(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{200, "2xx"},
		{204, "2xx"},
		{400, "4xx"},
		{503, "5xx"},
		{0, "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusClass(tt.status), tt.status)
	}
	assert.Equal(t, "unmatched", routeLabel(""))
	assert.Equal(t, "/api/history/repos", routeLabel("/api/history/repos"))
}
