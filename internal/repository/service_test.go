package repository

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/reporover/internal/config"
	"github.com/fyrsmithlabs/reporover/internal/conversation"
	"github.com/fyrsmithlabs/reporover/internal/logging"
	"github.com/fyrsmithlabs/reporover/internal/vectorstore"
)

func testIngestConfig() config.IngestConfig {
	cfg := config.NewDefaultConfig().Ingest
	cfg.EmbedInterval = 0
	cfg.ChunkSize = 100
	cfg.ChunkOverlap = 20
	return cfg
}

type serviceFixture struct {
	svc      *Service
	host     *fakeHost
	store    *recordingStore
	embedder *fakeEmbedder
	history  *conversation.SQLiteStore
	emitter  *collectEmitter
	logs     *logging.TestLogger
	now      time.Time
}

func newServiceFixture(t *testing.T, files map[string]string, opts ...Option) *serviceFixture {
	t.Helper()
	history, err := conversation.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = history.Close() })

	f := &serviceFixture{
		host:     newFakeHost(files),
		store:    &recordingStore{},
		embedder: &fakeEmbedder{},
		history:  history,
		emitter:  &collectEmitter{},
		logs:     logging.NewTestLogger(),
		now:      time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	var seq atomic.Uint64
	base := []Option{
		WithEmitter(f.emitter),
		WithLogger(f.logs.Underlying()),
		WithClock(func() time.Time { return f.now }),
		WithIDGenerator(func() *IDGenerator { return NewIDGeneratorWith("test", &seq) }),
	}
	f.svc, err = NewService(testIngestConfig(), f.host, f.store, f.embedder, history, append(base, opts...)...)
	require.NoError(t, err)
	return f
}

func TestService_Ingest(t *testing.T) {
	f := newServiceFixture(t, map[string]string{
		"README.md":           "# Demo\n\nA small demo repository used in tests.",
		"src/server.js":       strings.Repeat("app.get('/', handler)\n", 20),
		"node_modules/x/i.js": "ignored",
		"logo.png":            "not text",
	})
	ctx := context.Background()

	res, err := f.svc.Ingest(ctx, "alice", "https://github.com/Octo/Demo/", false)
	require.NoError(t, err)

	assert.False(t, res.Skipped)
	assert.Equal(t, "octo/demo", res.Repository.Key)
	assert.Equal(t, 2, res.Files)
	assert.Equal(t, 2, res.Downloaded)
	require.NotNil(t, res.Preview)
	assert.Equal(t, "README.md", res.Preview.Path)
	assert.True(t, strings.HasSuffix(res.Preview.ContentSnippet, "..."))

	stored := f.store.all()
	assert.Equal(t, res.Vectors, len(stored))
	assert.Greater(t, len(stored), 2, "server.js spans several chunks")
	ids := map[string]bool{}
	for _, r := range stored {
		assert.Equal(t, "octo/demo", r.Metadata.RepositoryKey)
		assert.NotEmpty(t, r.Metadata.Content)
		assert.NotEmpty(t, r.Vector)
		assert.False(t, ids[r.ID], "duplicate id %s", r.ID)
		ids[r.ID] = true
	}
	assert.Len(t, f.store.batches, 2, "one upsert per file")

	rec, err := f.history.Get(ctx, "alice", "octo/demo")
	require.NoError(t, err)
	assert.True(t, f.now.Equal(rec.LastAccessed))
	assert.True(t, f.now.Equal(rec.IngestedAt))
	assert.Equal(t, "https://github.com/Octo/Demo/", rec.RepoURL)

	msgs := f.emitter.messages()
	assert.Equal(t, "scanning octo/demo", msgs[0])
	assert.Contains(t, msgs, "found 2 files, downloading")
	assert.Contains(t, msgs, "downloaded README.md")
	assert.Contains(t, msgs, "indexed README.md (1 vectors)")
	assert.Equal(t, "done: 2 files, "+strconv.Itoa(res.Vectors)+" vectors", msgs[len(msgs)-1])
}

func TestService_FreshRepositoryIsSkipped(t *testing.T) {
	f := newServiceFixture(t, map[string]string{"main.go": "package main"})
	ctx := context.Background()

	require.NoError(t, f.history.MarkIngested(ctx, "alice", "octo/demo", "https://github.com/octo/demo", f.now.Add(-time.Hour)))

	res, err := f.svc.Ingest(ctx, "alice", "https://github.com/octo/demo", false)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Zero(t, res.Files)
	assert.Empty(t, f.host.listedPaths(), "a fresh repository costs no host calls")
	assert.Empty(t, f.store.all())
	assert.Equal(t, []string{"octo/demo was ingested recently, skipping"}, f.emitter.messages())
}

func TestService_AskBeforeIngestDoesNotSkip(t *testing.T) {
	f := newServiceFixture(t, map[string]string{"main.go": "package main"})
	ctx := context.Background()

	require.NoError(t, f.history.AppendMessage(ctx, "alice", "octo/demo", "https://github.com/octo/demo",
		conversation.Message{Role: conversation.RoleUser, Text: "what is this?", Timestamp: f.now.Add(-time.Minute)}))

	res, err := f.svc.Ingest(ctx, "alice", "https://github.com/octo/demo", false)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 1, res.Files)
	assert.NotEmpty(t, f.store.all())

	rec, err := f.history.Get(ctx, "alice", "octo/demo")
	require.NoError(t, err)
	assert.True(t, f.now.Equal(rec.IngestedAt))
	assert.Len(t, rec.Messages, 1, "the earlier question is kept")
}

func TestService_ForceBypassesFreshness(t *testing.T) {
	f := newServiceFixture(t, map[string]string{"main.go": "package main"})
	ctx := context.Background()
	require.NoError(t, f.history.MarkIngested(ctx, "alice", "octo/demo", "https://github.com/octo/demo", f.now.Add(-time.Hour)))

	res, err := f.svc.Ingest(ctx, "alice", "octo/demo", true)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 1, res.Files)
}

func TestService_StaleRepositoryIsReingested(t *testing.T) {
	f := newServiceFixture(t, map[string]string{"main.go": "package main"})
	ctx := context.Background()
	require.NoError(t, f.history.MarkIngested(ctx, "alice", "octo/demo", "https://github.com/octo/demo", f.now.Add(-48*time.Hour)))

	res, err := f.svc.Ingest(ctx, "alice", "octo/demo", false)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 1, res.Files)
}

func TestService_AnonymousNeverSkipsOrRecords(t *testing.T) {
	f := newServiceFixture(t, map[string]string{"main.go": "package main"})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := f.svc.Ingest(ctx, "", "octo/demo", false)
		require.NoError(t, err)
		assert.False(t, res.Skipped)
	}
	list, err := f.history.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestService_FailedChunksAreDropped(t *testing.T) {
	f := newServiceFixture(t, map[string]string{
		"good.go": "package good",
		"bad.go":  "package bad",
	})
	f.embedder.fail = func(text string) bool { return strings.Contains(text, "bad") }

	res, err := f.svc.Ingest(context.Background(), "alice", "octo/demo", false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Files)
	assert.Equal(t, 1, res.Vectors)
	assert.Equal(t, 2, res.Downloaded)
	require.Len(t, f.store.all(), 1)
	assert.Equal(t, "good.go", f.store.all()[0].Metadata.Path)
	f.logs.AssertLogged(t, zapcore.WarnLevel, "embedding chunk failed")
}

func TestService_StoreFailureFailsRun(t *testing.T) {
	f := newServiceFixture(t, map[string]string{"main.go": "package main"})
	f.store.err = vectorstore.ErrConnectionFailed

	res, err := f.svc.Ingest(context.Background(), "alice", "octo/demo", false)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, vectorstore.ErrConnectionFailed)

	msgs := f.emitter.messages()
	assert.True(t, strings.HasPrefix(msgs[len(msgs)-1], "ingestion failed: "))

	_, err = f.history.Get(context.Background(), "alice", "octo/demo")
	assert.ErrorIs(t, err, conversation.ErrNotFound, "a failed run is not recorded")
}

type releasingHost struct {
	*fakeHost
	released []string
}

func (h *releasingHost) Release(owner, repo string) {
	h.released = append(h.released, owner+"/"+repo)
}

func TestService_ReleasesHostAfterRun(t *testing.T) {
	host := &releasingHost{fakeHost: newFakeHost(map[string]string{"main.go": "package main"})}
	store := &recordingStore{}
	svc, err := NewService(testIngestConfig(), host, store, &fakeEmbedder{}, nil)
	require.NoError(t, err)

	_, err = svc.Ingest(context.Background(), "alice", "octo/demo", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"octo/demo"}, host.released)

	store.err = vectorstore.ErrConnectionFailed
	_, err = svc.Ingest(context.Background(), "alice", "octo/demo", true)
	require.Error(t, err)
	assert.Equal(t, []string{"octo/demo", "octo/demo"}, host.released, "failed runs release too")
}

func TestService_InvalidURL(t *testing.T) {
	f := newServiceFixture(t, nil)
	_, err := f.svc.Ingest(context.Background(), "alice", "https://github.com/only-owner", false)
	assert.ErrorIs(t, err, ErrInvalidRepositoryURL)

	_, err = f.svc.Ingest(context.Background(), "alice", "", false)
	assert.ErrorIs(t, err, ErrMissingInput)
}

func TestService_EmptyRepository(t *testing.T) {
	f := newServiceFixture(t, map[string]string{"logo.png": "x"})
	res, err := f.svc.Ingest(context.Background(), "alice", "octo/demo", false)
	require.NoError(t, err)
	assert.Zero(t, res.Files)
	assert.Nil(t, res.Preview)
}

func TestNewService_Validation(t *testing.T) {
	_, err := NewService(testIngestConfig(), nil, &recordingStore{}, &fakeEmbedder{}, nil)
	assert.ErrorIs(t, err, ErrMissingInput)

	cfg := testIngestConfig()
	cfg.ChunkOverlap = cfg.ChunkSize
	_, err = NewService(cfg, newFakeHost(nil), &recordingStore{}, &fakeEmbedder{}, nil)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrMissingInput))
}

func TestService_IndexPacesEmbeddingsInFileGroups(t *testing.T) {
	const (
		interval = 20 * time.Millisecond
		batch    = 2
	)
	cfg := testIngestConfig()
	cfg.EmbedInterval = config.Duration(interval)
	cfg.FileBatchSize = batch

	var records []FileRecord
	emb := &pacedEmbedder{hold: 3 * interval}
	for i := range 5 {
		marker := "file-" + strconv.Itoa(i)
		emb.markers = append(emb.markers, marker)
		records = append(records, FileRecord{
			FileDescriptor: FileDescriptor{Name: marker + ".go", Path: marker + ".go"},
			Content:        "// " + marker,
			RepositoryKey:  "octo/demo",
		})
	}
	svc, err := NewService(cfg, newFakeHost(nil), &recordingStore{}, emb, nil)
	require.NoError(t, err)

	files, vectors, err := svc.index(context.Background(), records, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 5, files)
	assert.Equal(t, 5, vectors)

	calls := emb.calls
	require.Len(t, calls, 5)
	assert.Equal(t, batch, emb.maxActive, "files of one group embed concurrently, never more than a group")

	for _, a := range calls {
		for _, b := range calls {
			if a.file/batch < b.file/batch {
				assert.False(t, b.start.Before(a.end),
					"file %d started before file %d of an earlier group finished", b.file, a.file)
			}
		}
	}

	// The limiter hands out one call per interval across groups.
	sort.Slice(calls, func(i, j int) bool { return calls[i].start.Before(calls[j].start) })
	const slack = 2 * time.Millisecond
	for k := 1; k < len(calls); k++ {
		assert.GreaterOrEqual(t, calls[k].start.Sub(calls[0].start), time.Duration(k)*interval-slack,
			"call %d came early", k)
	}
}
