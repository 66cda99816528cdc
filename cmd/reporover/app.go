package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fyrsmithlabs/reporover/internal/chat"
	"github.com/fyrsmithlabs/reporover/internal/config"
	"github.com/fyrsmithlabs/reporover/internal/conversation"
	"github.com/fyrsmithlabs/reporover/internal/embeddings"
	"github.com/fyrsmithlabs/reporover/internal/generation"
	"github.com/fyrsmithlabs/reporover/internal/github"
	"github.com/fyrsmithlabs/reporover/internal/gitclone"
	"github.com/fyrsmithlabs/reporover/internal/logging"
	"github.com/fyrsmithlabs/reporover/internal/progress"
	"github.com/fyrsmithlabs/reporover/internal/repository"
	"github.com/fyrsmithlabs/reporover/internal/retrieval"
	"github.com/fyrsmithlabs/reporover/internal/secrets"
	"github.com/fyrsmithlabs/reporover/internal/telemetry"
	"github.com/fyrsmithlabs/reporover/internal/vectorstore"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// appOptions selects which parts of the stack a command needs.
type appOptions struct {
	// generator builds the text-generation client; ingestion does not need one.
	generator bool
	// logToStderr keeps stdout free for command output or a protocol.
	logToStderr bool
	// emitters receive progress in addition to the shared channel.
	emitters []progress.Emitter
}

// app holds every wired dependency for one process.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	telemetry *telemetry.Telemetry

	embedder  embeddings.Provider
	store     vectorstore.Store
	history   *conversation.SQLiteStore
	channel   *progress.Channel
	shared    progress.Emitter
	source    progress.Source
	generator generation.Generator

	ingest *repository.Service
	chat   *chat.Service

	closers []func() error
}

// newApp loads configuration and wires the stack:
//  1. Logger and telemetry
//  2. Progress channel (NATS, or in-process when unavailable)
//  3. Embeddings, vector store and history
//  4. Repository host and secret redaction
//  5. Ingestion, retrieval, generation and chat services
func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}
	if err := a.init(ctx, opts); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context, opts appOptions) error {
	cfg := a.cfg
	var err error

	a.telemetry, err = telemetry.New(ctx, telemetry.FromAppConfig(cfg.Telemetry, version), nil)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	a.closers = append(a.closers, func() error { return a.telemetry.Shutdown(context.Background()) })

	logger, err := initLogger(cfg, opts.logToStderr)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger.Underlying()
	a.closers = append(a.closers, func() error { _ = logger.Sync(); return nil })

	a.initProgress()

	a.embedder, err = embeddings.NewProvider(ctx, cfg.Embeddings)
	if err != nil {
		return fmt.Errorf("failed to create embedding provider: %w", err)
	}
	a.closers = append(a.closers, a.embedder.Close)

	a.store, err = vectorstore.NewStore(cfg.VectorStore, a.logger)
	if err != nil {
		return fmt.Errorf("failed to open vector store: %w", err)
	}
	a.closers = append(a.closers, a.store.Close)

	a.history, err = conversation.NewSQLiteStore(cfg.History.Path)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	a.closers = append(a.closers, a.history.Close)

	host, err := newHost(ctx, cfg.GitHub, a.logger)
	if err != nil {
		return err
	}

	svcOpts := []repository.Option{
		repository.WithLogger(a.logger),
		repository.WithEmitter(a.emitter(opts.emitters)),
	}
	if cfg.Ingest.RedactSecrets {
		allow, err := secrets.LoadAllowlist(cfg.Ingest.SecretsAllowlist)
		if err != nil {
			return fmt.Errorf("failed to load secrets allowlist: %w", err)
		}
		redactor, err := secrets.NewRedactor(allow)
		if err != nil {
			return err
		}
		svcOpts = append(svcOpts, repository.WithRedactor(redactor))
	}

	a.ingest, err = repository.NewService(cfg.Ingest, host, a.store, a.embedder, a.history, svcOpts...)
	if err != nil {
		return fmt.Errorf("failed to create ingestion service: %w", err)
	}

	if opts.generator {
		a.generator, err = generation.New(ctx, cfg.Generation)
		if err != nil {
			return fmt.Errorf("failed to create generator: %w", err)
		}
		engine := retrieval.NewEngine(a.embedder, a.store, a.logger)
		a.chat = chat.NewService(cfg.Chat, engine, a.generator, a.history, a.logger)
	}

	a.logger.Info("reporover initialized",
		zap.String("version", version),
		zap.String("host_backend", cfg.GitHub.Backend),
		zap.String("vectorstore", cfg.VectorStore.Provider),
		zap.String("embeddings", cfg.Embeddings.Provider),
		zap.Bool("nats", a.channel != nil),
		zap.Bool("telemetry_degraded", a.telemetry.Degraded()),
	)
	return nil
}

// initLogger builds the zap logger from the config's logging section.
func initLogger(cfg *config.Config, toStderr bool) (*logging.Logger, error) {
	lc := logging.NewDefaultConfig()
	if cfg.Logging.Level != "" {
		lvl, err := logging.LevelFromString(cfg.Logging.Level)
		if err != nil {
			return nil, err
		}
		lc.Level = lvl
	}
	if cfg.Logging.Format != "" {
		lc.Format = cfg.Logging.Format
	}
	if toStderr {
		lc.Output = zapcore.Lock(os.Stderr)
	}
	lc.OTEL = cfg.Telemetry.Enabled
	return logging.NewLogger(lc, global.GetLoggerProvider())
}

// initProgress opens the NATS channel, falling back to an in-process
// broadcaster when none is configured or it cannot start.
func (a *app) initProgress() {
	ch, err := progress.Open(a.cfg.NATS, a.logger)
	switch {
	case err == nil:
		a.channel = ch
		a.shared, a.source = ch.Emitter, ch.Emitter
		a.closers = append(a.closers, func() error { ch.Close(); return nil })
		return
	case errors.Is(err, progress.ErrNoChannel):
		a.logger.Debug("no NATS channel configured, using in-process progress")
	default:
		a.logger.Warn("NATS unavailable, using in-process progress", zap.Error(err))
	}
	b := progress.NewBroadcaster()
	a.shared, a.source = b, b
}

// emitter combines the shared channel with any command-specific emitters.
func (a *app) emitter(extra []progress.Emitter) progress.Emitter {
	return append(progress.Multi{a.shared}, extra...)
}

// newHost selects the repository host backend.
func newHost(ctx context.Context, cfg config.GitHubConfig, logger *zap.Logger) (repository.Host, error) {
	switch cfg.Backend {
	case "gitclone":
		return gitclone.NewHost(cfg, logger), nil
	default:
		client, hc, err := github.NewClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create github client: %w", err)
		}
		return github.NewHost(client, hc), nil
	}
}

// Close releases resources in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && a.logger != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}
