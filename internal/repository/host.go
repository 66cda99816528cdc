package repository

import "context"

// EntryKind distinguishes files from directories in a listing.
type EntryKind string

const (
	EntryFile EntryKind = "file"
	EntryDir  EntryKind = "dir"
)

// Entry is one item of a directory listing.
type Entry struct {
	Name           string
	Path           string
	Kind           EntryKind
	ContentLocator string
}

// Host is a remote repository host.
type Host interface {
	// ListDirectory lists one directory; path "" is the repository root.
	ListDirectory(ctx context.Context, owner, repo, path string) ([]Entry, error)
	// FetchContent downloads a file's text by its locator.
	FetchContent(ctx context.Context, locator string) (string, error)
}

// Releaser is implemented by hosts that hold per-repository state, such as
// a clone, between calls. Ingest releases it when the run ends so the next
// run reads the repository afresh.
type Releaser interface {
	Release(owner, repo string)
}
