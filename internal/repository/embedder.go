package repository

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/reporover/internal/chunker"
	"github.com/fyrsmithlabs/reporover/internal/embeddings"
	"github.com/fyrsmithlabs/reporover/internal/vectorstore"
)

// EmbeddingStage turns one file's chunks into vector records. All chunks of
// a file embed concurrently; a shared limiter paces calls to the provider.
type EmbeddingStage struct {
	embedder embeddings.Embedder
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// NewEmbeddingStage creates a stage that waits interval between embedding
// calls. interval <= 0 disables pacing.
func NewEmbeddingStage(embedder embeddings.Embedder, interval time.Duration, logger *zap.Logger) *EmbeddingStage {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmbeddingStage{
		embedder: embedder,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger,
	}
}

// EmbedFile embeds chunks and returns one record per successful chunk, in
// chunk order. IDs are drawn from ids before any call is made, so they
// follow chunk order too.
func (s *EmbeddingStage) EmbedFile(ctx context.Context, ids *IDGenerator, chunks []chunker.Chunk) []vectorstore.VectorRecord {
	if len(chunks) == 0 {
		return nil
	}
	ctx, span := tracer.Start(ctx, "repository.embed_file")
	defer span.End()
	span.SetAttributes(
		attribute.String("path", chunks[0].SourcePath),
		attribute.Int("chunks", len(chunks)),
	)

	slots := make([]*vectorstore.VectorRecord, len(chunks))
	for i, c := range chunks {
		slots[i] = &vectorstore.VectorRecord{
			ID: ids.Next(c.SourcePath, c.Text),
			Metadata: vectorstore.Metadata{
				Path:          c.SourcePath,
				Content:       c.Text,
				RepositoryKey: c.RepositoryKey,
			},
		}
	}

	var wg sync.WaitGroup
	for i, c := range chunks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			vec, err := s.embedOne(ctx, c.Text)
			if err != nil {
				s.logger.Warn("embedding chunk failed",
					zap.String("path", c.SourcePath),
					zap.Int("chunk", c.Index),
					zap.Error(err))
				chunksDropped.Inc()
				slots[i] = nil
				return
			}
			slots[i].Vector = vec
		}()
	}
	wg.Wait()

	out := make([]vectorstore.VectorRecord, 0, len(chunks))
	for _, r := range slots {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

func (s *EmbeddingStage) embedOne(ctx context.Context, text string) ([]float32, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	vecs, err := s.embedder.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, embeddings.ErrEmbeddingFailed
	}
	return vecs[0], nil
}
