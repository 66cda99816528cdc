package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/fyrsmithlabs/reporover/internal/chat"
	"github.com/fyrsmithlabs/reporover/internal/conversation"
	"github.com/fyrsmithlabs/reporover/internal/repository"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
)

type fakeIngester struct {
	owner string
	force bool
	skip  bool
}

func (f *fakeIngester) Ingest(_ context.Context, ownerID, repoURL string, force bool) (*repository.IngestResult, error) {
	f.owner, f.force = ownerID, force
	repo, err := repository.ParseRepositoryURL(repoURL)
	if err != nil {
		return nil, err
	}
	if f.skip && !force {
		return &repository.IngestResult{Repository: repo, Skipped: true}, nil
	}
	return &repository.IngestResult{Repository: repo, Files: 4, Downloaded: 3, Vectors: 9}, nil
}

type fakeAsker struct {
	owner string
	err   error
}

// Ask retrieves nothing for questions starting with "unrelated".
func (f *fakeAsker) Ask(_ context.Context, ownerID, _, question string) (*chat.Answer, error) {
	f.owner = ownerID
	if f.err != nil {
		return nil, f.err
	}
	if strings.HasPrefix(question, "unrelated") {
		return &chat.Answer{Text: "no indexed code matches"}, nil
	}
	return &chat.Answer{Text: "answer to " + question, Sources: []string{"main.go"}}, nil
}

func connect(t *testing.T, s *Server) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	serverT, clientT := mcp.NewInMemoryTransports()

	ss, err := s.mcp.Connect(ctx, serverT, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0"}, nil)
	cs, err := client.Connect(ctx, clientT, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func newTestServer(t *testing.T) (*Server, *fakeIngester, *fakeAsker, *conversation.SQLiteStore) {
	t.Helper()
	return newMeteredServer(t, nil)
}

func newMeteredServer(t *testing.T, meter metric.Meter) (*Server, *fakeIngester, *fakeAsker, *conversation.SQLiteStore) {
	t.Helper()
	history, err := conversation.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = history.Close() })

	ing, ask := &fakeIngester{}, &fakeAsker{}
	cfg := DefaultConfig()
	cfg.OwnerID = "owner-1"
	cfg.Meter = meter
	s, err := NewServer(cfg, ing, ask, history)
	require.NoError(t, err)
	return s, ing, ask, history
}

func call(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any, out any) *mcp.CallToolResult {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	if out != nil && !res.IsError {
		raw, err := json.Marshal(res.StructuredContent)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, out))
	}
	return res
}

func TestNewServer_RequiresServices(t *testing.T) {
	history, err := conversation.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer history.Close()

	_, err = NewServer(nil, nil, &fakeAsker{}, history)
	assert.ErrorContains(t, err, "ingest service")
	_, err = NewServer(nil, &fakeIngester{}, nil, history)
	assert.ErrorContains(t, err, "chat service")
	_, err = NewServer(nil, &fakeIngester{}, &fakeAsker{}, nil)
	assert.ErrorContains(t, err, "history store")
}

func TestTools_Listed(t *testing.T) {
	s, _, _, _ := newTestServer(t)
	cs := connect(t, s)

	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"repo_ingest", "repo_ask", "repo_history"}, names)
}

func TestRepoIngest(t *testing.T) {
	s, ing, _, _ := newTestServer(t)
	cs := connect(t, s)

	var out repoIngestOutput
	res := call(t, cs, "repo_ingest", map[string]any{"repo_url": "https://github.com/Octo/Repo", "force": true}, &out)
	require.False(t, res.IsError)
	assert.Equal(t, "octo/repo", out.Repository)
	assert.Equal(t, 3, out.Downloaded)
	assert.Equal(t, 9, out.Vectors)
	assert.Equal(t, "owner-1", ing.owner)
	assert.True(t, ing.force)

	res = call(t, cs, "repo_ingest", map[string]any{"repo_url": "not a repo"}, nil)
	assert.True(t, res.IsError)
}

func TestRepoAsk(t *testing.T) {
	s, _, ask, _ := newTestServer(t)
	cs := connect(t, s)

	var out repoAskOutput
	res := call(t, cs, "repo_ask", map[string]any{"repo_url": "octo/repo", "question": "where is main?"}, &out)
	require.False(t, res.IsError)
	assert.Equal(t, "answer to where is main?", out.Answer)
	assert.Equal(t, []string{"main.go"}, out.Sources)
	assert.Equal(t, "owner-1", ask.owner)
}

func TestRepoHistory(t *testing.T) {
	s, _, _, history := newTestServer(t)
	cs := connect(t, s)
	ctx := context.Background()
	at := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, history.AppendMessage(ctx, "owner-1", "octo/repo", "https://github.com/octo/repo",
		conversation.Message{Role: conversation.RoleUser, Text: "hi", Timestamp: at}))
	require.NoError(t, history.AppendMessage(ctx, "owner-2", "octo/other", "https://github.com/octo/other",
		conversation.Message{Role: conversation.RoleUser, Text: "not yours", Timestamp: at}))

	var list repoHistoryOutput
	call(t, cs, "repo_history", map[string]any{}, &list)
	require.Len(t, list.Repositories, 1)
	assert.Equal(t, "octo/repo", list.Repositories[0].RepositoryKey)
	assert.Equal(t, "2026-04-01T09:00:00Z", list.Repositories[0].LastAccessed)

	var msgs repoHistoryOutput
	call(t, cs, "repo_history", map[string]any{"repo_url": "octo/repo"}, &msgs)
	require.Len(t, msgs.Messages, 1)
	assert.Equal(t, "user", msgs.Messages[0].Role)
	assert.Equal(t, "hi", msgs.Messages[0].Text)

	var none repoHistoryOutput
	res := call(t, cs, "repo_history", map[string]any{"repo_url": "octo/unknown"}, &none)
	assert.False(t, res.IsError)
	assert.Empty(t, none.Messages)
}
