package repository

import (
	"context"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/reporover/internal/progress"
	"github.com/fyrsmithlabs/reporover/internal/secrets"
)

const defaultFetchConcurrency = 16

// Redactor scrubs secrets from downloaded content.
type Redactor interface {
	Redact(path, content string) secrets.Result
}

// Fetcher downloads file contents on a bounded pool of workers.
type Fetcher struct {
	host        Host
	concurrency int
	redactor    Redactor
	emitter     progress.Emitter
	logger      *zap.Logger
}

// NewFetcher creates a Fetcher. concurrency <= 0 uses the default.
// redactor may be nil.
func NewFetcher(host Host, concurrency int, redactor Redactor, emitter progress.Emitter, logger *zap.Logger) *Fetcher {
	if concurrency <= 0 {
		concurrency = defaultFetchConcurrency
	}
	if emitter == nil {
		emitter = progress.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		host:        host,
		concurrency: concurrency,
		redactor:    redactor,
		emitter:     emitter,
		logger:      logger,
	}
}

// Fetch downloads every descriptor. Failed or binary files are dropped; the
// rest come back in descriptor order stamped with key.
func (f *Fetcher) Fetch(ctx context.Context, key string, files []FileDescriptor) []FileRecord {
	ctx, span := tracer.Start(ctx, "repository.fetch")
	defer span.End()

	slots := make([]*FileRecord, len(files))
	g := new(errgroup.Group)
	g.SetLimit(f.concurrency)

	for i, fd := range files {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			rec, ok := f.fetchOne(ctx, key, fd)
			if ok {
				slots[i] = rec
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]FileRecord, 0, len(files))
	for _, r := range slots {
		if r != nil {
			out = append(out, *r)
		}
	}
	span.SetAttributes(attribute.Int("requested", len(files)), attribute.Int("downloaded", len(out)))
	return out
}

func (f *Fetcher) fetchOne(ctx context.Context, key string, fd FileDescriptor) (*FileRecord, bool) {
	content, err := f.host.FetchContent(ctx, fd.ContentLocator)
	if err == nil && !utf8.ValidString(content) {
		err = errBinaryContent
	}
	if err != nil {
		f.logger.Warn("download failed", zap.String("path", fd.Path), zap.Error(err))
		progress.Emitf(ctx, f.emitter, "failed to download %s", fd.Path)
		filesTotal.WithLabelValues(stageFailed).Inc()
		return nil, false
	}

	if f.redactor != nil {
		res := f.redactor.Redact(fd.Path, content)
		if len(res.Findings) > 0 {
			rules := make([]string, 0, len(res.Findings))
			for _, fnd := range res.Findings {
				rules = append(rules, fnd.RuleID)
			}
			f.logger.Info("redacted secrets", zap.String("path", fd.Path), zap.Strings("rules", rules))
			secretsRedacted.Add(float64(len(res.Findings)))
		}
		content = res.Content
	}

	filesTotal.WithLabelValues(stageFetched).Inc()
	progress.Emitf(ctx, f.emitter, "downloaded %s", fd.Path)
	return &FileRecord{FileDescriptor: fd, Content: content, RepositoryKey: key}, true
}
