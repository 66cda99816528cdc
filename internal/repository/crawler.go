package repository

import (
	"bytes"
	"context"
	"path"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/reporover/internal/ignore"
	"github.com/fyrsmithlabs/reporover/internal/progress"
)

const (
	defaultCrawlConcurrency = 8
	ignoreFileName          = ".gitignore"
)

// Crawler walks a repository depth-first and returns the indexable files.
type Crawler struct {
	host        Host
	filter      *ignore.Filter
	emitter     progress.Emitter
	logger      *zap.Logger
	concurrency int
}

// NewCrawler creates a Crawler. A nil filter uses the default markers and
// extensions.
func NewCrawler(host Host, filter *ignore.Filter, emitter progress.Emitter, logger *zap.Logger) *Crawler {
	if filter == nil {
		filter = ignore.NewFilter(nil, nil)
	}
	if emitter == nil {
		emitter = progress.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{
		host:        host,
		filter:      filter,
		emitter:     emitter,
		logger:      logger,
		concurrency: defaultCrawlConcurrency,
	}
}

// Walk returns descriptors for every indexable file under dir. It never
// fails: an unlistable directory contributes nothing. On cancellation it
// returns what was collected so far.
func (c *Crawler) Walk(ctx context.Context, owner, repo, dir string) []FileDescriptor {
	ctx, span := tracer.Start(ctx, "repository.crawl")
	defer span.End()

	files := c.walk(ctx, c.filter, owner, repo, dir)
	span.SetAttributes(attribute.Int("files", len(files)))
	filesTotal.WithLabelValues(stageCrawled).Add(float64(len(files)))
	return files
}

func (c *Crawler) walk(ctx context.Context, filter *ignore.Filter, owner, repo, dir string) []FileDescriptor {
	if ctx.Err() != nil {
		return nil
	}

	entries, err := c.host.ListDirectory(ctx, owner, repo, dir)
	if err != nil {
		c.logger.Warn("listing directory failed",
			zap.String("repository", owner+"/"+repo),
			zap.String("path", dir),
			zap.Error(err))
		progress.Emitf(ctx, c.emitter, "failed to list %s", displayPath(dir))
		return nil
	}

	if dir == "" {
		filter = c.extendFromIgnoreFile(ctx, filter, entries)
	}

	// One slot per entry keeps the output in listing order.
	slots := make([][]FileDescriptor, len(entries))
	g := new(errgroup.Group)
	g.SetLimit(c.concurrency)

	for i, e := range entries {
		entryPath := e.Path
		if entryPath == "" {
			entryPath = path.Join(dir, e.Name)
		}
		switch e.Kind {
		case EntryFile:
			if filter.IsIndexable(entryPath) {
				slots[i] = []FileDescriptor{{Name: e.Name, Path: entryPath, ContentLocator: e.ContentLocator}}
			}
		case EntryDir:
			if !filter.AllowDir(entryPath) {
				continue
			}
			// Run inline when the pool is full so deep trees cannot starve.
			if !g.TryGo(func() error {
				slots[i] = c.walk(ctx, filter, owner, repo, entryPath)
				return nil
			}) {
				slots[i] = c.walk(ctx, filter, owner, repo, entryPath)
			}
		}
	}
	_ = g.Wait()

	var out []FileDescriptor
	for _, s := range slots {
		out = append(out, s...)
	}
	return out
}

// extendFromIgnoreFile adds the plain names from a root .gitignore to the
// filter. Failures leave the filter unchanged.
func (c *Crawler) extendFromIgnoreFile(ctx context.Context, filter *ignore.Filter, entries []Entry) *ignore.Filter {
	for _, e := range entries {
		if e.Kind != EntryFile || e.Name != ignoreFileName {
			continue
		}
		text, err := c.host.FetchContent(ctx, e.ContentLocator)
		if err != nil {
			c.logger.Debug("reading .gitignore failed", zap.Error(err))
			return filter
		}
		markers, err := ignore.ParseIgnoreFile(bytes.NewBufferString(text))
		if err != nil || len(markers) == 0 {
			return filter
		}
		return filter.WithMarkers(markers...)
	}
	return filter
}

func displayPath(p string) string {
	if p == "" {
		return "/"
	}
	return p
}
