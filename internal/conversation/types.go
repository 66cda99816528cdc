// Package conversation keeps one ingestion record per owner and repository:
// when it was last used and the chat exchanged about it.
package conversation

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no record exists for an owner and repository.
var ErrNotFound = errors.New("conversation record not found")

// Role identifies who wrote a message.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Message is one chat turn.
type Message struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Record is the ingestion record for (OwnerID, RepositoryKey).
type Record struct {
	OwnerID       string    `json:"ownerId"`
	RepositoryKey string    `json:"repositoryKey"`
	RepoURL       string    `json:"repoUrl"`
	LastAccessed  time.Time `json:"lastAccessed"`
	// IngestedAt is zero until an ingestion of the repository completes.
	// Chat alone creates records without it.
	IngestedAt    time.Time `json:"ingestedAt"`
	Messages      []Message `json:"messages"`
}

// Summary is a record without its messages.
type Summary struct {
	RepoURL       string    `json:"repoUrl"`
	RepositoryKey string    `json:"repositoryKey"`
	LastAccessed  time.Time `json:"lastAccessed"`
}

// Store persists ingestion records. There is exactly one record per
// (ownerID, repositoryKey); writes create it on demand.
type Store interface {
	// Get returns the record with messages in insertion order, or ErrNotFound.
	Get(ctx context.Context, ownerID, repositoryKey string) (*Record, error)

	// Touch creates the record if needed and sets LastAccessed to at.
	Touch(ctx context.Context, ownerID, repositoryKey, repoURL string, at time.Time) error

	// MarkIngested creates the record if needed and sets both IngestedAt
	// and LastAccessed to at.
	MarkIngested(ctx context.Context, ownerID, repositoryKey, repoURL string, at time.Time) error

	// AppendMessage creates the record if needed and appends msg.
	AppendMessage(ctx context.Context, ownerID, repositoryKey, repoURL string, msg Message) error

	// List returns the owner's records, most recently accessed first.
	List(ctx context.Context, ownerID string) ([]Summary, error)

	Close() error
}
