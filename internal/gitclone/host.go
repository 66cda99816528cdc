// Package gitclone implements repository.Host by shallow-cloning into
// memory and reading the worktree.
package gitclone

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-git/v5"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reporover/internal/config"
	"github.com/fyrsmithlabs/reporover/internal/repository"
)

const (
	defaultBaseURL = "https://github.com"
	defaultMaxKept = 4
	maxFileBytes   = 5 << 20
)

// ErrMalformedLocator indicates a locator not produced by this host.
var ErrMalformedLocator = errors.New("malformed content locator")

// CloneFunc produces the worktree of owner/repo.
type CloneFunc func(ctx context.Context, owner, repo string) (billy.Filesystem, error)

// Host serves listings and content from in-memory clones. A repository is
// cloned on first use and kept until Release, or until newer clones evict
// it, so one ingestion run reads a single snapshot.
type Host struct {
	clone  CloneFunc
	logger *zap.Logger

	mu      sync.Mutex
	trees   map[string]*tree
	order   []string
	maxKept int
}

type tree struct {
	once sync.Once
	fs   billy.Filesystem
	err  error
}

var (
	_ repository.Host     = (*Host)(nil)
	_ repository.Releaser = (*Host)(nil)
)

// NewHost builds a Host that clones over HTTPS from cfg.BaseURL (default
// github.com), authenticating with cfg.Token when set.
func NewHost(cfg config.GitHubConfig, logger *zap.Logger) *Host {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}

	var auth *githttp.BasicAuth
	if cfg.Token.IsSet() {
		auth = &githttp.BasicAuth{Username: "x-access-token", Password: cfg.Token.Value()}
	}

	clone := func(ctx context.Context, owner, repo string) (billy.Filesystem, error) {
		if timeout := cfg.Timeout.Duration(); timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		fs := memfs.New()
		opts := &git.CloneOptions{
			URL:          fmt.Sprintf("%s/%s/%s.git", base, owner, repo),
			Depth:        1,
			SingleBranch: true,
			Tags:         git.NoTags,
		}
		if auth != nil {
			opts.Auth = auth
		}
		r, err := git.CloneContext(ctx, memory.NewStorage(), fs, opts)
		if err != nil {
			return nil, fmt.Errorf("cloning %s: %w", opts.URL, err)
		}
		if head, err := r.Head(); err == nil {
			logger.Info("cloned repository",
				zap.String("repository", owner+"/"+repo),
				zap.String("ref", head.Name().Short()),
				zap.String("commit", head.Hash().String()))
		}
		return fs, nil
	}
	return NewHostWithCloner(clone, logger)
}

// NewHostWithCloner builds a Host around an arbitrary clone function.
func NewHostWithCloner(clone CloneFunc, logger *zap.Logger) *Host {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Host{
		clone:   clone,
		logger:  logger,
		trees:   make(map[string]*tree),
		maxKept: defaultMaxKept,
	}
}

func treeKey(owner, repo string) string {
	return strings.ToLower(owner + "/" + repo)
}

// Release drops the clone of owner/repo. The next listing clones again.
func (h *Host) Release(owner, repo string) {
	key := treeKey(owner, repo)

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.trees[key]; ok {
		h.dropLocked(key)
		h.logger.Debug("released clone", zap.String("repository", key))
	}
}

func (h *Host) dropLocked(key string) {
	delete(h.trees, key)
	for i, k := range h.order {
		if k == key {
			h.order = append(h.order[:i], h.order[i+1:]...)
			return
		}
	}
}

func (h *Host) worktree(ctx context.Context, owner, repo string) (billy.Filesystem, error) {
	key := treeKey(owner, repo)

	h.mu.Lock()
	t, ok := h.trees[key]
	if !ok {
		t = &tree{}
		h.trees[key] = t
		h.order = append(h.order, key)
		for len(h.order) > h.maxKept {
			delete(h.trees, h.order[0])
			h.order = h.order[1:]
		}
	}
	h.mu.Unlock()

	t.once.Do(func() {
		t.fs, t.err = h.clone(ctx, owner, repo)
	})
	if t.err != nil {
		// Let the next run try again.
		h.mu.Lock()
		if h.trees[key] == t {
			h.dropLocked(key)
		}
		h.mu.Unlock()
	}
	return t.fs, t.err
}

// ListDirectory implements repository.Host.
func (h *Host) ListDirectory(ctx context.Context, owner, repo, dir string) ([]repository.Entry, error) {
	fs, err := h.worktree(ctx, owner, repo)
	if err != nil {
		return nil, err
	}
	infos, err := fs.ReadDir(fsPath(dir))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	entries := make([]repository.Entry, 0, len(infos))
	for _, fi := range infos {
		p := path.Join(dir, fi.Name())
		switch {
		case fi.IsDir():
			entries = append(entries, repository.Entry{Name: fi.Name(), Path: p, Kind: repository.EntryDir})
		case fi.Mode().IsRegular():
			entries = append(entries, repository.Entry{
				Name:           fi.Name(),
				Path:           p,
				Kind:           repository.EntryFile,
				ContentLocator: owner + "/" + repo + ":" + p,
			})
		}
	}
	return entries, nil
}

// FetchContent implements repository.Host. Locators are "owner/repo:path".
func (h *Host) FetchContent(ctx context.Context, locator string) (string, error) {
	repoPart, p, ok := strings.Cut(locator, ":")
	owner, repo, ok2 := strings.Cut(repoPart, "/")
	if !ok || !ok2 || p == "" {
		return "", fmt.Errorf("%w: %q", ErrMalformedLocator, locator)
	}

	fs, err := h.worktree(ctx, owner, repo)
	if err != nil {
		return "", err
	}
	f, err := fs.Open(fsPath(p))
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", p, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxFileBytes+1))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", p, err)
	}
	if len(data) > maxFileBytes {
		return "", fmt.Errorf("%s exceeds %d bytes", p, maxFileBytes)
	}
	return string(data), nil
}

func fsPath(p string) string {
	if p == "" {
		return "/"
	}
	return "/" + strings.TrimPrefix(p, "/")
}
