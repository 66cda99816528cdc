package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var chromemTracer = otel.Tracer("reporover.vectorstore.chromem")

const providerChromem = "chromem"

// ChromemConfig holds configuration for the embedded chromem store.
type ChromemConfig struct {
	// Path is the persistence directory. Empty keeps the store in memory.
	Path string

	// Compress gzips the persisted gob files.
	Compress bool

	// Collection is the collection every record is written to.
	// Default: "reporover"
	Collection string
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Collection == "" {
		c.Collection = "reporover"
	}
}

// ChromemStore implements Store on chromem-go, an embeddable pure Go vector
// database with optional persistence to disk.
//
// Vectors are always supplied by the caller; the collection's embedding
// function refuses to compute any.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	config     ChromemConfig
	logger     *zap.Logger

	mu        sync.Mutex
	dimension int
}

// NewChromemStore creates a new ChromemStore with the given configuration.
func NewChromemStore(config ChromemConfig, logger *zap.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()

	var db *chromem.DB
	if config.Path == "" {
		db = chromem.NewDB()
	} else {
		if err := os.MkdirAll(config.Path, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", config.Path, err)
		}
		var err error
		db, err = chromem.NewPersistentDB(config.Path, config.Compress)
		if err != nil {
			return nil, fmt.Errorf("%w: opening chromem DB: %v", ErrConnectionFailed, err)
		}
	}

	collection, err := db.GetOrCreateCollection(config.Collection, nil, refuseToEmbed)
	if err != nil {
		return nil, fmt.Errorf("opening collection %s: %w", config.Collection, err)
	}

	logger.Info("ChromemStore initialized",
		zap.String("path", config.Path),
		zap.Bool("compress", config.Compress),
		zap.String("collection", config.Collection),
		zap.Int("documents", collection.Count()),
	)

	return &ChromemStore{
		db:         db,
		collection: collection,
		config:     config,
		logger:     logger,
	}, nil
}

func refuseToEmbed(context.Context, string) ([]float32, error) {
	return nil, errors.New("chromem store requires precomputed embeddings")
}

// Upsert writes records, replacing any with the same ID.
func (s *ChromemStore) Upsert(ctx context.Context, records []VectorRecord) (err error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Upsert")
	defer span.End()
	defer func() { recordUpsert(providerChromem, len(records), err) }()

	span.SetAttributes(attribute.Int("records", len(records)))

	if len(records) == 0 {
		return ErrEmptyDocuments
	}
	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		if r.ID == "" {
			return fmt.Errorf("%w: record %d has no id", ErrEmptyDocuments, i)
		}
		docs[i] = chromem.Document{
			ID: r.ID,
			Metadata: map[string]string{
				MetaPath:          r.Metadata.Path,
				MetaRepositoryKey: r.Metadata.RepositoryKey,
			},
			Embedding: r.Vector,
			Content:   r.Metadata.Content,
		}
	}

	// The dimension is fixed by the first batch that is actually stored.
	s.mu.Lock()
	defer s.mu.Unlock()

	dim, err := checkDimension(records, s.dimension)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if err := s.collection.AddDocuments(ctx, docs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("adding documents: %w", err)
	}
	s.dimension = dim

	span.SetStatus(codes.Ok, "success")
	s.logger.Debug("upserted records to chromem",
		zap.String("collection", s.config.Collection),
		zap.Int("count", len(records)),
	)
	return nil
}

// checkDimension requires every vector in the batch to share one non-zero
// length, equal to want when want is set, and returns that length.
func checkDimension(records []VectorRecord, want int) (int, error) {
	dim := want
	for i, r := range records {
		if len(r.Vector) == 0 {
			return 0, fmt.Errorf("%w: record %d has an empty vector", ErrDimensionMismatch, i)
		}
		if dim == 0 {
			dim = len(r.Vector)
		}
		if len(r.Vector) != dim {
			return 0, fmt.Errorf("%w: record %d has %d dimensions, want %d", ErrDimensionMismatch, i, len(r.Vector), dim)
		}
	}
	return dim, nil
}

// Query returns the k nearest records to vector that match filter.
func (s *ChromemStore) Query(ctx context.Context, vector []float32, k int, filter map[string]string) ([]SearchResult, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Query")
	defer span.End()
	defer observeQuery(providerChromem, time.Now())

	span.SetAttributes(attribute.Int("k", k))

	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", ErrDimensionMismatch)
	}
	if err := validateFilter(filter); err != nil {
		return nil, err
	}

	// chromem requires nResults <= doc count
	docCount := s.collection.Count()
	if docCount == 0 {
		return []SearchResult{}, nil
	}
	if k > docCount {
		k = docCount
	}

	var where map[string]string
	if len(filter) > 0 {
		where = filter
	}

	results, err := s.collection.QueryEmbedding(ctx, vector, k, where, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", s.config.Collection, err)
	}

	out := make([]SearchResult, len(results))
	for i, r := range results {
		meta := metadataFromMap(r.Metadata)
		meta.Content = r.Content
		out[i] = SearchResult{
			ID:       r.ID,
			Score:    r.Similarity,
			Metadata: meta,
		}
	}

	span.SetAttributes(attribute.Int("results_count", len(out)))
	span.SetStatus(codes.Ok, "success")
	return out, nil
}

// Count returns the number of stored records.
func (s *ChromemStore) Count(context.Context) (int, error) {
	return s.collection.Count(), nil
}

// Close is a no-op; chromem persists on every write.
func (s *ChromemStore) Close() error {
	return nil
}
