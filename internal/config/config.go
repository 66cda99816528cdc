// Package config provides configuration loading for reporover.
//
// Configuration is read from a YAML file and overridden by REPOROVER_*
// environment variables. Missing values fall back to the defaults in
// NewDefaultConfig.
package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds the complete reporover configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	GitHub      GitHubConfig      `koanf:"github"`
	Ingest      IngestConfig      `koanf:"ingest"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	Generation  GenerationConfig  `koanf:"generation"`
	Chat        ChatConfig        `koanf:"chat"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	History     HistoryConfig     `koanf:"history"`
	NATS        NATSConfig        `koanf:"nats"`
	Auth        AuthConfig        `koanf:"auth"`
	Logging     LoggingConfig     `koanf:"logging"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// GitHubConfig configures the repository host.
type GitHubConfig struct {
	// Backend is "github" (contents API) or "gitclone" (shallow in-memory clone).
	Backend string   `koanf:"backend"`
	Token   Secret   `koanf:"token"`
	BaseURL string   `koanf:"base_url"`
	Timeout Duration `koanf:"timeout"`
}

// IngestConfig tunes the ingestion pipeline.
type IngestConfig struct {
	ChunkSize        int      `koanf:"chunk_size"`
	ChunkOverlap     int      `koanf:"chunk_overlap"`
	FileBatchSize    int      `koanf:"file_batch_size"`
	EmbedInterval    Duration `koanf:"embed_interval"`
	FetchConcurrency int      `koanf:"fetch_concurrency"`
	FreshnessWindow  Duration `koanf:"freshness_window"`
	ExcludeMarkers   []string `koanf:"exclude_markers"`
	Extensions       []string `koanf:"extensions"`
	RedactSecrets    bool     `koanf:"redact_secrets"`
	// SecretsAllowlist is an optional TOML file of allowlisted patterns.
	SecretsAllowlist string   `koanf:"secrets_allowlist"`
}

// EmbeddingsConfig selects and configures the embedding provider.
type EmbeddingsConfig struct {
	Provider  string `koanf:"provider"`
	Model     string `koanf:"model"`
	BaseURL   string `koanf:"base_url"`
	APIKey    Secret `koanf:"api_key"`
	Dimension int    `koanf:"dimension"`
	CacheDir  string `koanf:"cache_dir"`
}

// GenerationConfig selects and configures the text-generation provider.
type GenerationConfig struct {
	Provider    string  `koanf:"provider"`
	Model       string  `koanf:"model"`
	APIKey      Secret  `koanf:"api_key"`
	BaseURL     string  `koanf:"base_url"`
	MaxTokens   int     `koanf:"max_tokens"`
	Temperature float64 `koanf:"temperature"`
}

// ChatConfig tunes question answering.
type ChatConfig struct {
	TopK            int `koanf:"top_k"`
	MaxContextBytes int `koanf:"max_context_bytes"`
}

// VectorStoreConfig selects the vector index.
type VectorStoreConfig struct {
	Provider   string `koanf:"provider"`
	Path       string `koanf:"path"`
	Collection string `koanf:"collection"`
	Compress   bool   `koanf:"compress"`
	QdrantHost string `koanf:"qdrant_host"`
	QdrantPort int    `koanf:"qdrant_port"`
	QdrantTLS  bool   `koanf:"qdrant_tls"`
	QdrantKey  Secret `koanf:"qdrant_api_key"`
}

// HistoryConfig locates the conversation log database.
type HistoryConfig struct {
	Path string `koanf:"path"`
}

// NATSConfig configures the progress channel.
type NATSConfig struct {
	URL     string `koanf:"url"`
	Subject string `koanf:"subject"`
	// Embedded starts an in-process nats-server when URL is empty.
	Embedded bool `koanf:"embedded"`
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	JWTSecret Secret `koanf:"jwt_secret"`
}

// LoggingConfig is the subset of logging settings exposed through config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	Protocol    string  `koanf:"protocol"`
	Insecure    bool    `koanf:"insecure"`
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// NewDefaultConfig returns the configuration used when nothing is set.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            5000,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		GitHub: GitHubConfig{
			Backend: "github",
			Timeout: Duration(30 * time.Second),
		},
		Ingest: IngestConfig{
			ChunkSize:        1000,
			ChunkOverlap:     200,
			FileBatchSize:    5,
			EmbedInterval:    Duration(time.Second),
			FetchConcurrency: 16,
			FreshnessWindow:  Duration(24 * time.Hour),
			RedactSecrets:    true,
		},
		Embeddings: EmbeddingsConfig{
			// An empty model selects the provider's default.
			Provider:  "gemini",
			Dimension: 768,
		},
		Generation: GenerationConfig{
			Provider:    "gemini",
			MaxTokens:   2048,
			Temperature: 0.2,
		},
		Chat: ChatConfig{
			TopK:            15,
			MaxContextBytes: 60000,
		},
		VectorStore: VectorStoreConfig{
			Provider:   "chromem",
			Path:       "~/.config/reporover/vectorstore",
			Collection: "reporover",
			Compress:   true,
			QdrantHost: "localhost",
			QdrantPort: 6334,
		},
		History: HistoryConfig{
			Path: "~/.config/reporover/history.db",
		},
		NATS: NATSConfig{
			Subject:  "reporover.progress",
			Embedded: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Endpoint:    "localhost:4317",
			Protocol:    "grpc",
			Insecure:    true,
			ServiceName: "reporover",
			SampleRate:  1.0,
		},
	}
}

var (
	knownHostBackends       = map[string]bool{"github": true, "gitclone": true}
	knownEmbeddingProviders = map[string]bool{"gemini": true, "tei": true, "fastembed": true, "openai": true}
	knownGenerators         = map[string]bool{"gemini": true, "anthropic": true, "openai": true}
	knownVectorStores       = map[string]bool{"chromem": true, "qdrant": true}
)

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server port %d (must be 1-65535)", ErrInvalidConfig, c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return fmt.Errorf("%w: shutdown timeout must be positive", ErrInvalidConfig)
	}
	if !knownHostBackends[c.GitHub.Backend] {
		return fmt.Errorf("%w: unknown github backend %q", ErrInvalidConfig, c.GitHub.Backend)
	}

	in := c.Ingest
	if in.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive", ErrInvalidConfig)
	}
	if in.ChunkOverlap < 0 || in.ChunkOverlap >= in.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be in [0, chunk_size)", ErrInvalidConfig)
	}
	if in.FileBatchSize <= 0 {
		return fmt.Errorf("%w: file_batch_size must be positive", ErrInvalidConfig)
	}
	if in.FetchConcurrency <= 0 {
		return fmt.Errorf("%w: fetch_concurrency must be positive", ErrInvalidConfig)
	}
	if in.FreshnessWindow.Duration() < 0 {
		return fmt.Errorf("%w: freshness_window cannot be negative", ErrInvalidConfig)
	}

	if !knownEmbeddingProviders[c.Embeddings.Provider] {
		return fmt.Errorf("%w: unknown embeddings provider %q", ErrInvalidConfig, c.Embeddings.Provider)
	}
	if !knownGenerators[c.Generation.Provider] {
		return fmt.Errorf("%w: unknown generation provider %q", ErrInvalidConfig, c.Generation.Provider)
	}
	if !knownVectorStores[c.VectorStore.Provider] {
		return fmt.Errorf("%w: unknown vectorstore provider %q", ErrInvalidConfig, c.VectorStore.Provider)
	}
	if c.Chat.TopK <= 0 {
		return fmt.Errorf("%w: chat top_k must be positive", ErrInvalidConfig)
	}
	if c.History.Path == "" {
		return fmt.Errorf("%w: history path required", ErrInvalidConfig)
	}
	if c.Telemetry.Enabled && c.Telemetry.ServiceName == "" {
		return fmt.Errorf("%w: service name required when telemetry is enabled", ErrInvalidConfig)
	}
	return nil
}
