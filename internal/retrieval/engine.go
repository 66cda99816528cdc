// Package retrieval finds the chunks most similar to a question, scoped to
// one repository.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reporover/internal/embeddings"
	"github.com/fyrsmithlabs/reporover/internal/vectorstore"
)

// DefaultTopK is the chat default.
const DefaultTopK = 15

// ErrEmptyQuery indicates a blank question.
var ErrEmptyQuery = errors.New("empty query")

var tracer = otel.Tracer("reporover.retrieval")

// RetrievedChunk is one match.
type RetrievedChunk struct {
	Path          string
	Content       string
	RepositoryKey string
	Score         float32
}

// Engine embeds queries and searches the vector store.
type Engine struct {
	embedder embeddings.Embedder
	store    vectorstore.Store
	logger   *zap.Logger
}

// NewEngine creates an Engine.
func NewEngine(embedder embeddings.Embedder, store vectorstore.Store, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{embedder: embedder, store: store, logger: logger}
}

// Retrieve returns up to topK chunks ordered by descending score. A non-empty
// key restricts matches to that repository. No match is not an error.
func (e *Engine) Retrieve(ctx context.Context, query string, topK int, key string) ([]RetrievedChunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	ctx, span := tracer.Start(ctx, "retrieval.retrieve")
	defer span.End()
	span.SetAttributes(attribute.Int("top_k", topK), attribute.String("repository", key))

	vec, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	var filter map[string]string
	if key != "" {
		filter = map[string]string{vectorstore.MetaRepositoryKey: key}
	}
	results, err := e.store.Query(ctx, vec, topK, filter)
	if err != nil {
		return nil, fmt.Errorf("querying vector store: %w", err)
	}

	out := make([]RetrievedChunk, 0, len(results))
	for _, r := range results {
		if key != "" && r.Metadata.RepositoryKey != key {
			e.logger.Warn("store returned a match outside the requested repository",
				zap.String("want", key),
				zap.String("got", r.Metadata.RepositoryKey),
				zap.String("id", r.ID))
			continue
		}
		out = append(out, RetrievedChunk{
			Path:          r.Metadata.Path,
			Content:       r.Metadata.Content,
			RepositoryKey: r.Metadata.RepositoryKey,
			Score:         r.Score,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > topK {
		out = out[:topK]
	}

	span.SetAttributes(attribute.Int("matches", len(out)))
	return out, nil
}
