// Package mcp exposes ingestion, question answering and history as MCP
// tools over stdio, so an editor agent can query a repository directly.
package mcp

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/reporover/internal/chat"
	"github.com/fyrsmithlabs/reporover/internal/conversation"
	"github.com/fyrsmithlabs/reporover/internal/repository"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Ingester runs one ingestion.
type Ingester interface {
	Ingest(ctx context.Context, ownerID, repoURL string, force bool) (*repository.IngestResult, error)
}

// Asker answers one question.
type Asker interface {
	Ask(ctx context.Context, ownerID, repoURL, question string) (*chat.Answer, error)
}

// HistoryReader reads conversation records.
type HistoryReader interface {
	Get(ctx context.Context, ownerID, repositoryKey string) (*conversation.Record, error)
	List(ctx context.Context, ownerID string) ([]conversation.Summary, error)
}

// Server is an MCP server backed by the reporover services.
type Server struct {
	mcp     *mcp.Server
	ingest  Ingester
	chat    Asker
	history HistoryReader
	ownerID string
	metrics *toolMetrics
	logger  *zap.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "reporover")
	Name string

	// Version is the server version (default: "dev")
	Version string

	// OwnerID scopes every tool call. The stdio transport carries no
	// credentials, so the process owner is used.
	OwnerID string

	// Logger for structured logging
	Logger *zap.Logger

	// Meter records tool metrics (default: the global meter provider)
	Meter metric.Meter
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "reporover",
		Version: "dev",
		Logger:  zap.NewNop(),
	}
}

// NewServer creates a new MCP server with the given services.
func NewServer(cfg *Config, ingest Ingester, ask Asker, history HistoryReader) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	meter := cfg.Meter
	if meter == nil {
		meter = otel.Meter(meterName)
	}
	if ingest == nil {
		return nil, fmt.Errorf("ingest service is required")
	}
	if ask == nil {
		return nil, fmt.Errorf("chat service is required")
	}
	if history == nil {
		return nil, fmt.Errorf("history store is required")
	}

	s := &Server{
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		ingest:  ingest,
		chat:    ask,
		history: history,
		ownerID: cfg.OwnerID,
		metrics: newToolMetrics(meter, cfg.Logger),
		logger:  cfg.Logger,
	}
	s.registerTools()
	return s, nil
}

// Run starts the MCP server on the stdio transport.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}
