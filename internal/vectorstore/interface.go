// Package vectorstore persists embedded chunks and answers nearest-neighbour
// queries over them.
package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for vector store operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyDocuments indicates an upsert with nothing to write.
	ErrEmptyDocuments = errors.New("empty or nil documents")

	// ErrConnectionFailed indicates the backend could not be reached.
	ErrConnectionFailed = errors.New("failed to connect to vector store")

	// ErrDimensionMismatch is returned when a vector does not match the
	// dimension already stored in the collection.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrUnsupportedFilter is returned for filter keys that are not
	// indexed metadata.
	ErrUnsupportedFilter = errors.New("unsupported filter key")
)

// Store is the interface for vector storage operations.
//
// Records are addressed by ID; writing an existing ID replaces it. Query
// returns at most k results ordered by descending similarity, restricted to
// records whose metadata equals every entry of filter.
type Store interface {
	Upsert(ctx context.Context, records []VectorRecord) error
	Query(ctx context.Context, vector []float32, k int, filter map[string]string) ([]SearchResult, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// filterable lists metadata keys that may appear in a query filter.
var filterable = map[string]bool{
	MetaRepositoryKey: true,
	MetaPath:          true,
}

func validateFilter(filter map[string]string) error {
	for k := range filter {
		if !filterable[k] {
			return errors.Join(ErrUnsupportedFilter, errors.New(k))
		}
	}
	return nil
}
