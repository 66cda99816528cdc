package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fyrsmithlabs/reporover/internal/conversation"
	"github.com/fyrsmithlabs/reporover/internal/repository"
	"github.com/fyrsmithlabs/reporover/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Cleanup(func() { configPath = "" })
	return path
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"serve", "ingest", "ask", "history", "mcp", "token", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version:    dev")
}

func TestArgsValidation(t *testing.T) {
	_, err := execute(t, "ingest")
	assert.Error(t, err)
	_, err = execute(t, "ask", "octo/repo")
	assert.Error(t, err)
}

func TestTokenCmd(t *testing.T) {
	path := writeConfig(t, "auth:\n  jwt_secret: test-secret\n")

	out, err := execute(t, "--config", path, "token", "user-9", "--ttl", "1h")
	require.NoError(t, err)

	owner, err := auth.NewVerifier("test-secret").OwnerFromToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "user-9", owner)
}

func TestTokenCmd_NoSecret(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: info\n")
	_, err := execute(t, "--config", path, "token", "user-9")
	assert.ErrorContains(t, err, "jwt_secret")
}

func TestLineEmitter(t *testing.T) {
	var buf bytes.Buffer
	e := &lineEmitter{w: &buf}
	e.Emit(context.Background(), "scanning octo/repo")
	e.Emit(context.Background(), "done: 2 files, 5 vectors")
	assert.Equal(t, "scanning octo/repo\ndone: 2 files, 5 vectors\n", buf.String())
}

func TestPrintRepos(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printRepos(&buf, nil))
	assert.Contains(t, buf.String(), "no repositories")

	buf.Reset()
	require.NoError(t, printRepos(&buf, []conversation.Summary{
		{RepoURL: "https://github.com/octo/repo", RepositoryKey: "octo/repo", LastAccessed: time.Now()},
	}))
	assert.Contains(t, buf.String(), "REPOSITORY")
	assert.Contains(t, buf.String(), "octo/repo")
}

func TestPrintIngestResult(t *testing.T) {
	repo := repository.Repository{Owner: "octo", Name: "repo", Key: "octo/repo"}

	var buf bytes.Buffer
	printIngestResult(&buf, &repository.IngestResult{Repository: repo, Files: 2, Downloaded: 3, Vectors: 7})
	assert.Contains(t, buf.String(), "Files:      3 downloaded, 2 indexed\n")
	assert.NotContains(t, buf.String(), "found")

	buf.Reset()
	printIngestResult(&buf, &repository.IngestResult{Repository: repo, Skipped: true})
	assert.Equal(t, "octo/repo was ingested recently; use --force to re-ingest\n", buf.String())
}
