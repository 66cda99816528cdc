// Package http serves the reporover API: ingestion, chat, history and a
// progress stream, all scoped to the authenticated owner.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fyrsmithlabs/reporover/internal/chat"
	"github.com/fyrsmithlabs/reporover/internal/config"
	"github.com/fyrsmithlabs/reporover/internal/conversation"
	"github.com/fyrsmithlabs/reporover/internal/generation"
	"github.com/fyrsmithlabs/reporover/internal/logging"
	"github.com/fyrsmithlabs/reporover/internal/progress"
	"github.com/fyrsmithlabs/reporover/internal/repository"
	"github.com/fyrsmithlabs/reporover/pkg/auth"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const defaultHeartbeat = 30 * time.Second

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

// Services are the handlers' dependencies. Generator and Verifier may be
// nil: without a generator /health/generation reports unavailable, and
// without a verifier the server runs in local mode.
type Services struct {
	Ingest    Ingester
	Chat      Asker
	History   HistoryReader
	Progress  progress.Source
	Generator generation.Generator
	Verifier  *auth.Verifier
}

// Server provides HTTP endpoints for reporover.
type Server struct {
	echo      *echo.Echo
	svc       Services
	logger    *zap.Logger
	config    *config.ServerConfig
	metrics   *routeMetrics
	heartbeat time.Duration
}

// NewServer creates a new HTTP server.
func NewServer(svc Services, logger *zap.Logger, cfg *config.ServerConfig) (*Server, error) {
	return newServer(svc, logger, cfg, otel.Meter(meterName))
}

func newServer(svc Services, logger *zap.Logger, cfg *config.ServerConfig, meter metric.Meter) (*Server, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	switch {
	case svc.Ingest == nil:
		return nil, fmt.Errorf("ingest service cannot be nil")
	case svc.Chat == nil:
		return nil, fmt.Errorf("chat service cannot be nil")
	case svc.History == nil:
		return nil, fmt.Errorf("history store cannot be nil")
	case svc.Progress == nil:
		return nil, fmt.Errorf("progress source cannot be nil")
	}
	if cfg == nil {
		def := config.NewDefaultConfig().Server
		cfg = &def
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:      e,
		svc:       svc,
		logger:    logger,
		config:    cfg,
		metrics:   newRouteMetrics(meter, logger),
		heartbeat: defaultHeartbeat,
	}
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.metrics.middleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			reqID := c.Response().Header().Get(echo.HeaderXRequestID)
			c.SetRequest(c.Request().WithContext(logging.WithRequestID(c.Request().Context(), reqID)))

			err := next(c)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", reqID),
			)
			return err
		}
	})

	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/health/generation", s.handleGenerationHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.echo.Group("/api", auth.Middleware(s.svc.Verifier))
	api.POST("/ingest", s.handleIngest)
	api.POST("/chat", s.handleChat)
	api.GET("/history", s.handleHistory)
	api.GET("/history/repos", s.handleHistoryRepos)
	api.GET("/progress", s.handleProgress)
}

// Echo exposes the underlying router, e.g. for httptest.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleGenerationHealth makes one short generation call.
func (s *Server) handleGenerationHealth(c echo.Context) error {
	if s.svc.Generator == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "no generator configured")
	}
	answer, err := generation.SelfTest(c.Request().Context(), s.svc.Generator)
	if err != nil {
		s.logger.Error("generation self-test failed",
			zap.String("generator", s.svc.Generator.Name()), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "generation failed"})
	}
	return c.JSON(http.StatusOK, GenerationHealthResponse{
		Message:   "generation is working",
		Generator: s.svc.Generator.Name(),
		Answer:    answer,
	})
}
