package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reporover/internal/progress"
	"github.com/fyrsmithlabs/reporover/internal/vectorstore"
)

// UpsertStage writes one file's records to the vector store in one call.
type UpsertStage struct {
	store   vectorstore.Store
	emitter progress.Emitter
	logger  *zap.Logger
}

// NewUpsertStage creates an UpsertStage.
func NewUpsertStage(store vectorstore.Store, emitter progress.Emitter, logger *zap.Logger) *UpsertStage {
	if emitter == nil {
		emitter = progress.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UpsertStage{store: store, emitter: emitter, logger: logger}
}

// UpsertFile writes records and returns how many were written. An empty
// batch is a no-op. A store error is returned; it fails the run.
func (u *UpsertStage) UpsertFile(ctx context.Context, path string, records []vectorstore.VectorRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	ctx, span := tracer.Start(ctx, "repository.upsert_file")
	defer span.End()

	if err := u.store.Upsert(ctx, records); err != nil {
		return 0, fmt.Errorf("upserting %s: %w", path, err)
	}
	filesTotal.WithLabelValues(stageIndexed).Inc()
	u.logger.Debug("indexed file", zap.String("path", path), zap.Int("vectors", len(records)))
	progress.Emitf(ctx, u.emitter, "indexed %s (%d vectors)", path, len(records))
	return len(records), nil
}
