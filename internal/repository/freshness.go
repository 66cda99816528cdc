package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fyrsmithlabs/reporover/internal/conversation"
)

// RecordReader loads ingestion records.
type RecordReader interface {
	Get(ctx context.Context, ownerID, repositoryKey string) (*conversation.Record, error)
}

// FreshnessGate decides whether a repository was ingested recently enough
// to skip a new run.
type FreshnessGate struct {
	records RecordReader
	window  time.Duration
	now     func() time.Time
}

// NewFreshnessGate creates a gate. A window <= 0 never skips.
func NewFreshnessGate(records RecordReader, window time.Duration) *FreshnessGate {
	return &FreshnessGate{records: records, window: window, now: time.Now}
}

// ShouldSkip reports whether owner ingested key before and accessed it less
// than the window ago. An empty owner, a missing record or a record that
// chat created without an ingestion never skips.
func (g *FreshnessGate) ShouldSkip(ctx context.Context, ownerID, key string) (bool, error) {
	if ownerID == "" || g.window <= 0 || g.records == nil {
		return false, nil
	}
	rec, err := g.records.Get(ctx, ownerID, key)
	if errors.Is(err, conversation.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if rec.IngestedAt.IsZero() {
		return false, nil
	}
	return g.now().Sub(rec.LastAccessed) < g.window, nil
}
