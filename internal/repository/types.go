package repository

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrInvalidRepositoryURL indicates the URL does not name an owner and a repository.
	ErrInvalidRepositoryURL = errors.New("invalid repository url")

	// ErrMissingInput indicates a required argument was empty.
	ErrMissingInput = errors.New("missing required input")

	errBinaryContent = errors.New("content is not valid UTF-8")
)

// Repository identifies one hosted repository.
type Repository struct {
	Owner string
	Name  string
	// Key is the canonical lower-cased "owner/repo".
	Key string
	// URL is the input as given, trimmed.
	URL string
}

// ParseRepositoryURL accepts "https://github.com/owner/repo", the same
// without a scheme, or the "owner/repo" shorthand. Trailing slashes and a
// ".git" suffix are ignored.
func ParseRepositoryURL(raw string) (Repository, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Repository{}, fmt.Errorf("%w: repository url", ErrMissingInput)
	}
	cleaned := strings.TrimRight(trimmed, "/")

	var segments []string
	if first, _, _ := strings.Cut(cleaned, "/"); strings.Contains(cleaned, "://") || strings.Contains(first, ".") {
		if !strings.Contains(cleaned, "://") {
			cleaned = "https://" + cleaned
		}
		u, err := url.Parse(cleaned)
		if err != nil || u.Host == "" {
			return Repository{}, fmt.Errorf("%w: %q", ErrInvalidRepositoryURL, raw)
		}
		segments = splitPath(u.Path)
	} else {
		// owner/repo shorthand
		segments = splitPath(cleaned)
		if len(segments) != 2 {
			return Repository{}, fmt.Errorf("%w: %q", ErrInvalidRepositoryURL, raw)
		}
	}

	if len(segments) < 2 {
		return Repository{}, fmt.Errorf("%w: %q", ErrInvalidRepositoryURL, raw)
	}
	owner := segments[0]
	name := strings.TrimSuffix(segments[1], ".git")
	if owner == "" || name == "" {
		return Repository{}, fmt.Errorf("%w: %q", ErrInvalidRepositoryURL, raw)
	}

	return Repository{
		Owner: owner,
		Name:  name,
		Key:   strings.ToLower(owner + "/" + name),
		URL:   trimmed,
	}, nil
}

func splitPath(p string) []string {
	var out []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

// FileDescriptor identifies one indexable file found by the crawler.
type FileDescriptor struct {
	Name string
	Path string
	// ContentLocator is host-specific: a download URL, or a path into a clone.
	ContentLocator string
}

// FileRecord is a downloaded file. It lives for one run only.
type FileRecord struct {
	FileDescriptor
	Content       string
	RepositoryKey string
}

// Preview shows the start of the first ingested file.
type Preview struct {
	Path           string `json:"path"`
	ContentSnippet string `json:"contentSnippet"`
}

// IngestResult summarizes one run.
type IngestResult struct {
	Repository Repository
	// Files counts files with at least one vector written.
	Files int
	// Downloaded counts files fetched successfully.
	Downloaded int
	Vectors    int
	// Skipped is set when the freshness gate short-circuited the run.
	Skipped bool
	Preview *Preview
}

const previewLength = 200

func newPreview(records []FileRecord) *Preview {
	if len(records) == 0 {
		return nil
	}
	first := records[0]
	snippet := first.Content
	if runes := []rune(snippet); len(runes) > previewLength {
		snippet = string(runes[:previewLength])
	}
	return &Preview{Path: first.Path, ContentSnippet: snippet + "..."}
}
