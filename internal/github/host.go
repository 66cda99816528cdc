package github

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/go-github/v57/github"

	"github.com/fyrsmithlabs/reporover/internal/repository"
)

// maxFileBytes caps a single download.
const maxFileBytes = 5 << 20

// apiLocatorPrefix marks a locator that is fetched through the contents API
// because the listing carried no download URL.
const apiLocatorPrefix = "api:"

// Host lists directories through Repositories.GetContents and downloads
// files from their raw download URLs.
type Host struct {
	client *github.Client
	http   *http.Client
}

var _ repository.Host = (*Host)(nil)

// NewHost wraps a client. hc is used for raw downloads so they carry the
// same credentials and timeout as API calls.
func NewHost(client *github.Client, hc *http.Client) *Host {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Host{client: client, http: hc}
}

// ListDirectory implements repository.Host.
func (h *Host) ListDirectory(ctx context.Context, owner, repo, path string) ([]repository.Entry, error) {
	file, dir, _, err := h.client.Repositories.GetContents(ctx, owner, repo, path, &github.RepositoryContentGetOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing %s/%s/%s: %w", owner, repo, path, classify(err))
	}
	if file != nil && dir == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, path)
	}

	entries := make([]repository.Entry, 0, len(dir))
	for _, c := range dir {
		e := repository.Entry{Name: c.GetName(), Path: c.GetPath()}
		switch c.GetType() {
		case "dir":
			e.Kind = repository.EntryDir
		case "file":
			e.Kind = repository.EntryFile
			e.ContentLocator = c.GetDownloadURL()
			if e.ContentLocator == "" {
				e.ContentLocator = apiLocatorPrefix + owner + "/" + repo + ":" + c.GetPath()
			}
		default:
			// symlinks and submodules
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// FetchContent implements repository.Host.
func (h *Host) FetchContent(ctx context.Context, locator string) (string, error) {
	if rest, ok := strings.CutPrefix(locator, apiLocatorPrefix); ok {
		return h.fetchViaAPI(ctx, rest)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return "", fmt.Errorf("building download request: %w", err)
	}
	resp, err := h.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", locator, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("downloading %s: status %d", locator, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFileBytes+1))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", locator, err)
	}
	if len(body) > maxFileBytes {
		return "", fmt.Errorf("%s exceeds %d bytes", locator, maxFileBytes)
	}
	return string(body), nil
}

// fetchViaAPI resolves an "owner/repo:path" locator.
func (h *Host) fetchViaAPI(ctx context.Context, ref string) (string, error) {
	repoPart, path, ok := strings.Cut(ref, ":")
	owner, repo, ok2 := strings.Cut(repoPart, "/")
	if !ok || !ok2 {
		return "", fmt.Errorf("malformed locator %q", ref)
	}
	file, _, _, err := h.client.Repositories.GetContents(ctx, owner, repo, path, &github.RepositoryContentGetOptions{})
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", ref, classify(err))
	}
	if file == nil {
		return "", fmt.Errorf("%s is not a file", ref)
	}
	content, err := file.GetContent()
	if err != nil {
		return "", fmt.Errorf("decoding %s: %w", ref, err)
	}
	return content, nil
}
