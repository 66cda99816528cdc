package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/fyrsmithlabs/reporover/internal/conversation"
	"github.com/fyrsmithlabs/reporover/internal/repository"
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

func callKey(set attribute.Set) string {
	key := ""
	for _, k := range []string{"tool", "outcome", "reason"} {
		if v, ok := set.Value(attribute.Key(k)); ok {
			if key != "" {
				key += " "
			}
			key += v.AsString()
		}
	}
	return key
}

func TestToolMetrics_Outcomes(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	s, ing, ask, history := newMeteredServer(t, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter(meterName))
	cs := connect(t, s)
	ctx := context.Background()

	call(t, cs, "repo_ingest", map[string]any{"repo_url": "octo/repo"}, nil)
	ing.skip = true
	call(t, cs, "repo_ingest", map[string]any{"repo_url": "octo/repo"}, nil)
	call(t, cs, "repo_ingest", map[string]any{"repo_url": "not a repo"}, nil)

	call(t, cs, "repo_ask", map[string]any{"repo_url": "octo/repo", "question": "where is main?"}, nil)
	call(t, cs, "repo_ask", map[string]any{"repo_url": "octo/repo", "question": "unrelated: weather?"}, nil)
	ask.err = errors.New("generating answer: quota")
	call(t, cs, "repo_ask", map[string]any{"repo_url": "octo/repo", "question": "again?"}, nil)

	require.NoError(t, history.AppendMessage(ctx, "owner-1", "octo/repo", "https://github.com/octo/repo",
		conversation.Message{Role: conversation.RoleUser, Text: "hi"}))
	call(t, cs, "repo_history", map[string]any{}, nil)
	call(t, cs, "repo_history", map[string]any{"repo_url": "octo/repo"}, nil)
	call(t, cs, "repo_history", map[string]any{"repo_url": "octo/unknown"}, nil)

	data := collect(t, reader)
	calls, ok := data["reporover.mcp.tool.calls"].(metricdata.Sum[int64])
	require.True(t, ok)
	got := map[string]int64{}
	for _, dp := range calls.DataPoints {
		got[callKey(dp.Attributes)] += dp.Value
	}
	assert.Equal(t, map[string]int64{
		"repo_ingest ingested":               1,
		"repo_ingest skipped":                1,
		"repo_ingest error validation_error": 1,
		"repo_ask answered":                  1,
		"repo_ask no_context":                1,
		"repo_ask error generation_error":    1,
		"repo_history listed":                1,
		"repo_history found":                 1,
		"repo_history unknown_repository":    1,
	}, got)

	hist, ok := data["reporover.mcp.tool.duration"].(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		_, hasReason := dp.Attributes.Value("reason")
		assert.False(t, hasReason, "durations are labelled by tool and outcome only")
		count += dp.Count
	}
	assert.EqualValues(t, 9, count)

	vectors, ok := data["reporover.mcp.ingest.vectors"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, vectors.DataPoints, 1)
	assert.EqualValues(t, 9, vectors.DataPoints[0].Value, "a skipped run writes no vectors")
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"invalid url", fmt.Errorf("%w: ftp://x", repository.ErrInvalidRepositoryURL), "validation_error"},
		{"missing input", fmt.Errorf("%w: question", repository.ErrMissingInput), "validation_error"},
		{"not found", fmt.Errorf("get: %w", conversation.ErrNotFound), "not_found"},
		{"deadline", fmt.Errorf("embed: %w", context.DeadlineExceeded), "timeout"},
		{"rate limit", errors.New("429: Rate limit exceeded"), "rate_limited"},
		{"upsert", errors.New("upsert batch 3: connection reset"), "storage_error"},
		{"embedding", errors.New("embedding file main.go: boom"), "storage_error"},
		{"generation", errors.New("generating answer: quota"), "generation_error"},
		{"other", errors.New("boom"), "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, categorizeError(tt.err))
		})
	}
}
