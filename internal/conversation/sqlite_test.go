package conversation

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "alice", "octo/repo")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_TouchCreatesAndUpdates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, s.Touch(ctx, "alice", "octo/repo", "https://github.com/octo/repo", first))

	rec, err := s.Get(ctx, "alice", "octo/repo")
	require.NoError(t, err)
	assert.True(t, first.Equal(rec.LastAccessed))
	assert.Equal(t, "https://github.com/octo/repo", rec.RepoURL)
	assert.Empty(t, rec.Messages)

	later := first.Add(time.Hour)
	require.NoError(t, s.Touch(ctx, "alice", "octo/repo", "https://github.com/Octo/Repo.git", later))

	rec, err = s.Get(ctx, "alice", "octo/repo")
	require.NoError(t, err)
	assert.True(t, later.Equal(rec.LastAccessed))
	assert.Equal(t, "https://github.com/Octo/Repo.git", rec.RepoURL)

	list, err := s.List(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, list, 1, "one record per owner and key")
}

func TestSQLiteStore_MarkIngested(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	asked := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.AppendMessage(ctx, "alice", "octo/repo", "https://github.com/octo/repo",
		Message{Role: RoleUser, Text: "what does this do?", Timestamp: asked}))

	rec, err := s.Get(ctx, "alice", "octo/repo")
	require.NoError(t, err)
	assert.True(t, rec.IngestedAt.IsZero(), "chat alone does not count as an ingestion")

	ingested := asked.Add(time.Minute)
	require.NoError(t, s.MarkIngested(ctx, "alice", "octo/repo", "https://github.com/octo/repo", ingested))

	rec, err = s.Get(ctx, "alice", "octo/repo")
	require.NoError(t, err)
	assert.True(t, ingested.Equal(rec.IngestedAt))
	assert.True(t, ingested.Equal(rec.LastAccessed))
	assert.Len(t, rec.Messages, 1)

	// A later chat refreshes access but leaves the ingestion time alone.
	require.NoError(t, s.Touch(ctx, "alice", "octo/repo", "https://github.com/octo/repo", ingested.Add(time.Hour)))
	rec, err = s.Get(ctx, "alice", "octo/repo")
	require.NoError(t, err)
	assert.True(t, ingested.Equal(rec.IngestedAt))
	assert.True(t, ingested.Add(time.Hour).Equal(rec.LastAccessed))
}

func TestSQLiteStore_AppendMessageKeepsOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	msgs := []Message{
		{Role: RoleUser, Text: "where is auth handled?", Timestamp: base},
		{Role: RoleBot, Text: "in auth.js", Timestamp: base.Add(time.Second)},
		{Role: RoleUser, Text: "and sessions?", Timestamp: base.Add(2 * time.Second)},
	}
	for _, m := range msgs {
		require.NoError(t, s.AppendMessage(ctx, "alice", "octo/repo", "https://github.com/octo/repo", m))
	}

	rec, err := s.Get(ctx, "alice", "octo/repo")
	require.NoError(t, err)
	require.Len(t, rec.Messages, 3)
	for i, m := range msgs {
		assert.Equal(t, m.Role, rec.Messages[i].Role)
		assert.Equal(t, m.Text, rec.Messages[i].Text)
		assert.True(t, m.Timestamp.Equal(rec.Messages[i].Timestamp))
	}
	assert.True(t, base.Equal(rec.LastAccessed), "appending does not move last access")
}

func TestSQLiteStore_OwnersAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.AppendMessage(ctx, "alice", "octo/repo", "u", Message{Role: RoleUser, Text: "hi"}))
	require.NoError(t, s.AppendMessage(ctx, "bob", "octo/repo", "u", Message{Role: RoleUser, Text: "yo"}))

	rec, err := s.Get(ctx, "bob", "octo/repo")
	require.NoError(t, err)
	require.Len(t, rec.Messages, 1)
	assert.Equal(t, "yo", rec.Messages[0].Text)

	list, err := s.List(ctx, "carol")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSQLiteStore_ListMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Touch(ctx, "alice", "octo/old", "https://github.com/octo/old", base))
	require.NoError(t, s.Touch(ctx, "alice", "octo/new", "https://github.com/octo/new", base.Add(48*time.Hour)))
	require.NoError(t, s.Touch(ctx, "alice", "octo/mid", "https://github.com/octo/mid", base.Add(24*time.Hour)))

	list, err := s.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "octo/new", list[0].RepositoryKey)
	assert.Equal(t, "octo/mid", list[1].RepositoryKey)
	assert.Equal(t, "octo/old", list[2].RepositoryKey)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "history.db")

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.AppendMessage(ctx, "alice", "octo/repo", "u", Message{Role: RoleUser, Text: "persist me"}))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	rec, err := s.Get(ctx, "alice", "octo/repo")
	require.NoError(t, err)
	require.Len(t, rec.Messages, 1)
	assert.Equal(t, "persist me", rec.Messages[0].Text)
}

func TestSQLiteStore_InMemory(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Touch(context.Background(), "o", "k", "u", time.Now()))
	_, err = s.Get(context.Background(), "o", "k")
	assert.NoError(t, err)
}
