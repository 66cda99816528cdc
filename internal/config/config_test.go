package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1000, cfg.Ingest.ChunkSize)
	assert.Equal(t, 200, cfg.Ingest.ChunkOverlap)
	assert.Equal(t, 5, cfg.Ingest.FileBatchSize)
	assert.Equal(t, time.Second, cfg.Ingest.EmbedInterval.Duration())
	assert.Equal(t, 24*time.Hour, cfg.Ingest.FreshnessWindow.Duration())
	assert.Equal(t, 15, cfg.Chat.TopK)
	assert.Equal(t, "chromem", cfg.VectorStore.Provider)
	assert.Equal(t, "gemini", cfg.Embeddings.Provider)
	assert.Equal(t, "gemini", cfg.Generation.Provider)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "server port",
		},
		{
			name:    "zero shutdown timeout",
			mutate:  func(c *Config) { c.Server.ShutdownTimeout = 0 },
			wantErr: "shutdown timeout",
		},
		{
			name:    "overlap equal to chunk size",
			mutate:  func(c *Config) { c.Ingest.ChunkOverlap = c.Ingest.ChunkSize },
			wantErr: "chunk_overlap",
		},
		{
			name:    "negative overlap",
			mutate:  func(c *Config) { c.Ingest.ChunkOverlap = -1 },
			wantErr: "chunk_overlap",
		},
		{
			name:    "zero fetch concurrency",
			mutate:  func(c *Config) { c.Ingest.FetchConcurrency = 0 },
			wantErr: "fetch_concurrency",
		},
		{
			name:    "unknown embeddings provider",
			mutate:  func(c *Config) { c.Embeddings.Provider = "pinecone" },
			wantErr: "embeddings provider",
		},
		{
			name:    "unknown generation provider",
			mutate:  func(c *Config) { c.Generation.Provider = "unknown" },
			wantErr: "generation provider",
		},
		{
			name:    "unknown vectorstore",
			mutate:  func(c *Config) { c.VectorStore.Provider = "pinecone" },
			wantErr: "vectorstore provider",
		},
		{
			name:    "unknown host backend",
			mutate:  func(c *Config) { c.GitHub.Backend = "svn" },
			wantErr: "github backend",
		},
		{
			name:    "empty history path",
			mutate:  func(c *Config) { c.History.Path = "" },
			wantErr: "history path",
		},
		{
			name: "telemetry without service name",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.ServiceName = ""
			},
			wantErr: "service name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSecret_NeverPrintsValue(t *testing.T) {
	s := Secret("ghp_supersecret")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.NotContains(t, fmt.Sprintf("%#v", s), "supersecret")
	assert.Equal(t, "ghp_supersecret", s.Value())
	assert.True(t, s.IsSet())

	data, err := json.Marshal(struct{ Token Secret }{Token: s})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "supersecret")

	assert.Equal(t, "", Secret("").String())
	assert.False(t, Secret("").IsSet())
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-1s")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}
