package repository

import (
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRepositoryURL(t *testing.T) {
	tests := []struct {
		in        string
		owner     string
		name      string
		key       string
		wantError error
	}{
		{in: "https://github.com/Octo/Repo", owner: "Octo", name: "Repo", key: "octo/repo"},
		{in: "https://github.com/octo/repo/", owner: "octo", name: "repo", key: "octo/repo"},
		{in: "https://github.com/octo/repo.git", owner: "octo", name: "repo", key: "octo/repo"},
		{in: "https://github.com/octo/repo/tree/main/src", owner: "octo", name: "repo", key: "octo/repo"},
		{in: "github.com/octo/repo", owner: "octo", name: "repo", key: "octo/repo"},
		{in: "  octo/repo  ", owner: "octo", name: "repo", key: "octo/repo"},
		{in: "", wantError: ErrMissingInput},
		{in: "   ", wantError: ErrMissingInput},
		{in: "https://github.com/octo", wantError: ErrInvalidRepositoryURL},
		{in: "https://github.com/", wantError: ErrInvalidRepositoryURL},
		{in: "not-a-repo", wantError: ErrInvalidRepositoryURL},
		{in: "a/b/c", wantError: ErrInvalidRepositoryURL},
		{in: "https://github.com/octo/.git", wantError: ErrInvalidRepositoryURL},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			repo, err := ParseRepositoryURL(tt.in)
			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.owner, repo.Owner)
			assert.Equal(t, tt.name, repo.Name)
			assert.Equal(t, tt.key, repo.Key)
			assert.Equal(t, strings.TrimSpace(tt.in), repo.URL)
		})
	}
}

func TestNewPreview(t *testing.T) {
	assert.Nil(t, newPreview(nil))

	long := strings.Repeat("é", 250)
	p := newPreview([]FileRecord{{FileDescriptor: FileDescriptor{Path: "a.md"}, Content: long}})
	require.NotNil(t, p)
	assert.Equal(t, "a.md", p.Path)
	assert.Equal(t, strings.Repeat("é", 200)+"...", p.ContentSnippet)

	p = newPreview([]FileRecord{{FileDescriptor: FileDescriptor{Path: "b.md"}, Content: "short"}})
	assert.Equal(t, "short...", p.ContentSnippet)
}

func TestIDGenerator(t *testing.T) {
	var seq atomic.Uint64
	g := NewIDGeneratorWith("run1", &seq)

	a := g.Next("a.go", "same text")
	b := g.Next("a.go", "same text")
	assert.NotEqual(t, a, b, "same chunk twice still gets distinct ids")
	assert.True(t, strings.HasPrefix(a, "run1-1-"))
	assert.True(t, strings.HasPrefix(b, "run1-2-"))
	assert.Equal(t, a[len("run1-1-"):], b[len("run1-2-"):], "hash depends only on path and text")
	assert.Len(t, a[len("run1-1-"):], 12)

	var again atomic.Uint64
	assert.Equal(t, a, NewIDGeneratorWith("run1", &again).Next("a.go", "same text"))
}

func TestIDGenerator_UniqueAcrossRunsAndGoroutines(t *testing.T) {
	r1, r2 := NewIDGenerator(), NewIDGenerator()
	assert.NotEqual(t, r1.Run(), r2.Run())

	var (
		mu   sync.Mutex
		seen = map[string]bool{}
		wg   sync.WaitGroup
	)
	for _, g := range []*IDGenerator{r1, r2} {
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					id := g.Next("x.go", "chunk")
					mu.Lock()
					seen[id] = true
					mu.Unlock()
				}
			}()
		}
	}
	wg.Wait()
	assert.Len(t, seen, 1600)
}
