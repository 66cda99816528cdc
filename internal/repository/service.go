package repository

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/reporover/internal/chunker"
	"github.com/fyrsmithlabs/reporover/internal/config"
	"github.com/fyrsmithlabs/reporover/internal/embeddings"
	"github.com/fyrsmithlabs/reporover/internal/ignore"
	"github.com/fyrsmithlabs/reporover/internal/logging"
	"github.com/fyrsmithlabs/reporover/internal/progress"
	"github.com/fyrsmithlabs/reporover/internal/vectorstore"
)

const defaultFileBatchSize = 5

// HistoryStore is the part of the conversation store ingestion needs.
type HistoryStore interface {
	RecordReader
	MarkIngested(ctx context.Context, ownerID, repositoryKey, repoURL string, at time.Time) error
}

// Service runs ingestion.
type Service struct {
	host      Host
	filter    *ignore.Filter
	splitter  *chunker.Splitter
	store     vectorstore.Store
	embedder  embeddings.Embedder
	history   HistoryStore
	gate      *FreshnessGate
	batchSize int

	fetchConcurrency int
	embedInterval    time.Duration

	redactor Redactor
	emitter  progress.Emitter
	logger   *zap.Logger
	now      func() time.Time
	newIDs   func() *IDGenerator
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithEmitter sets where progress goes.
func WithEmitter(e progress.Emitter) Option {
	return func(s *Service) {
		if e != nil {
			s.emitter = e
		}
	}
}

// WithRedactor scrubs secrets from content before it is chunked.
func WithRedactor(r Redactor) Option {
	return func(s *Service) { s.redactor = r }
}

// WithClock replaces time.Now for the service and its freshness gate.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator replaces the per-run ID generator factory.
func WithIDGenerator(fn func() *IDGenerator) Option {
	return func(s *Service) { s.newIDs = fn }
}

// NewService creates an ingestion service from the ingest config section.
func NewService(
	cfg config.IngestConfig,
	host Host,
	store vectorstore.Store,
	embedder embeddings.Embedder,
	history HistoryStore,
	opts ...Option,
) (*Service, error) {
	if host == nil || store == nil || embedder == nil {
		return nil, fmt.Errorf("%w: host, store and embedder are required", ErrMissingInput)
	}

	splitter, err := chunker.New(
		chunker.WithChunkSize(cfg.ChunkSize),
		chunker.WithOverlap(cfg.ChunkOverlap),
	)
	if err != nil {
		return nil, fmt.Errorf("configuring chunker: %w", err)
	}

	batch := cfg.FileBatchSize
	if batch <= 0 {
		batch = defaultFileBatchSize
	}

	s := &Service{
		host:             host,
		filter:           ignore.NewFilter(cfg.ExcludeMarkers, cfg.Extensions),
		splitter:         splitter,
		store:            store,
		embedder:         embedder,
		history:          history,
		batchSize:        batch,
		fetchConcurrency: cfg.FetchConcurrency,
		embedInterval:    cfg.EmbedInterval.Duration(),
		emitter:          progress.Nop{},
		logger:           zap.NewNop(),
		now:              time.Now,
		newIDs:           NewIDGenerator,
	}
	for _, opt := range opts {
		opt(s)
	}

	var reader RecordReader
	if history != nil {
		reader = history
	}
	s.gate = NewFreshnessGate(reader, cfg.FreshnessWindow.Duration())
	s.gate.now = s.now
	return s, nil
}

// Ingest crawls, downloads, chunks, embeds and indexes the repository at
// repoURL for ownerID. Unless force is set, a repository the owner accessed
// within the freshness window is skipped. Each run reads the repository from
// scratch.
func (s *Service) Ingest(ctx context.Context, ownerID, repoURL string, force bool) (result *IngestResult, err error) {
	repo, err := ParseRepositoryURL(repoURL)
	if err != nil {
		return nil, err
	}

	ctx = progress.WithOwner(ctx, ownerID)
	ctx = logging.WithOwnerID(ctx, ownerID)
	logger := s.logger.With(logging.Fields(ctx, zap.String("repository", repo.Key))...)

	ctx, span := tracer.Start(ctx, "repository.ingest")
	defer span.End()
	span.SetAttributes(attribute.String("repository", repo.Key), attribute.Bool("force", force))

	start := s.now()
	defer func() {
		switch {
		case err != nil:
			runsTotal.WithLabelValues("failed").Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case result != nil && result.Skipped:
			runsTotal.WithLabelValues("skipped").Inc()
		default:
			runsTotal.WithLabelValues("ok").Inc()
			runDuration.Observe(s.now().Sub(start).Seconds())
		}
	}()

	if !force {
		skip, gateErr := s.gate.ShouldSkip(ctx, ownerID, repo.Key)
		if gateErr != nil {
			logger.Warn("freshness check failed, ingesting anyway", zap.Error(gateErr))
		}
		if skip {
			logger.Info("repository is fresh, skipping ingestion")
			progress.Emitf(ctx, s.emitter, "%s was ingested recently, skipping", repo.Key)
			return &IngestResult{Repository: repo, Skipped: true}, nil
		}
	}

	if r, ok := s.host.(Releaser); ok {
		defer r.Release(repo.Owner, repo.Name)
	}

	logger.Info("starting ingestion")
	progress.Emitf(ctx, s.emitter, "scanning %s", repo.Key)

	crawler := NewCrawler(s.host, s.filter, s.emitter, logger)
	files := crawler.Walk(ctx, repo.Owner, repo.Name, "")
	logger.Info("crawl complete", zap.Int("files", len(files)))
	progress.Emitf(ctx, s.emitter, "found %d files, downloading", len(files))

	fetcher := NewFetcher(s.host, s.fetchConcurrency, s.redactor, s.emitter, logger)
	records := fetcher.Fetch(ctx, repo.Key, files)
	logger.Info("download complete", zap.Int("downloaded", len(records)), zap.Int("failed", len(files)-len(records)))

	indexed, vectors, err := s.index(ctx, records, logger)
	if err != nil {
		logger.Error("ingestion failed", zap.Error(err))
		progress.Emitf(ctx, s.emitter, "ingestion failed: %v", err)
		return nil, fmt.Errorf("ingesting %s: %w", repo.Key, err)
	}

	if s.history != nil && ownerID != "" {
		if err := s.history.MarkIngested(ctx, ownerID, repo.Key, repo.URL, s.now()); err != nil {
			logger.Warn("recording ingestion failed", zap.Error(err))
		}
	}

	logger.Info("ingestion complete", zap.Int("files", indexed), zap.Int("vectors", vectors))
	progress.Emitf(ctx, s.emitter, "done: %d files, %d vectors", indexed, vectors)

	return &IngestResult{
		Repository: repo,
		Files:      indexed,
		Downloaded: len(records),
		Vectors:    vectors,
		Preview:    newPreview(records),
	}, nil
}

// index chunks, embeds and upserts records in groups of batchSize files. A
// group finishes before the next starts.
func (s *Service) index(ctx context.Context, records []FileRecord, logger *zap.Logger) (files, vectors int, err error) {
	ids := s.newIDs()
	stage := NewEmbeddingStage(s.embedder, s.embedInterval, logger)
	upsert := NewUpsertStage(s.store, s.emitter, logger)

	counts := make([]int, len(records))
	for lo := 0; lo < len(records); lo += s.batchSize {
		hi := min(lo+s.batchSize, len(records))

		g, gctx := errgroup.WithContext(ctx)
		for i := lo; i < hi; i++ {
			rec := records[i]
			g.Go(func() error {
				chunks := s.splitter.ChunkFile(rec.Path, rec.RepositoryKey, rec.Content)
				batch := stage.EmbedFile(gctx, ids, chunks)
				n, err := upsert.UpsertFile(gctx, rec.Path, batch)
				counts[i] = n
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return 0, 0, err
		}
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
	}

	for _, n := range counts {
		if n > 0 {
			files++
			vectors += n
		}
	}
	return files, vectors, nil
}
