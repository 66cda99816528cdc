package ignore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter_IsIndexable(t *testing.T) {
	f := NewFilter(nil, nil)

	tests := []struct {
		path string
		want bool
	}{
		{"src/index.js", true},
		{"README.md", true},
		{"cmd/server/main.go", true},
		{"Dockerfile", true},
		{"deploy/Makefile", true},
		{"src/App.JSX", true},
		{"assets/logo.png", false},
		{"bin/tool", false},
		{"", false},
		{"node_modules/react/index.js", false},
		{"web/node_modules/lib/a.ts", false},
		{".git/config.json", false},
		{"dist/bundle.js", false},
		{"package-lock.json", false},
		{"sub/yarn.lock", false},
		{"go.sum", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, f.IsIndexable(tt.path))
		})
	}
}

func TestFilter_MarkerBeatsExtension(t *testing.T) {
	f := NewFilter(nil, nil)
	for _, marker := range DefaultMarkers {
		for _, ext := range []string{".js", ".go", ".md", ".json"} {
			p := "a/" + marker + "/b/file" + ext
			assert.False(t, f.IsIndexable(p), p)
		}
	}
}

func TestFilter_AllowDir(t *testing.T) {
	f := NewFilter(nil, nil)
	assert.True(t, f.AllowDir("src"))
	assert.True(t, f.AllowDir("src/components"))
	assert.True(t, f.AllowDir("builder"))
	assert.False(t, f.AllowDir("build"))
	assert.False(t, f.AllowDir("packages/web/node_modules"))
	assert.False(t, f.AllowDir(".git"))
}

func TestFilter_Custom(t *testing.T) {
	f := NewFilter([]string{"generated"}, []string{"go", ".PROTO"})

	assert.True(t, f.IsIndexable("api/service.proto"))
	assert.True(t, f.IsIndexable("main.go"))
	assert.False(t, f.IsIndexable("main.py"))
	assert.False(t, f.IsIndexable("generated/types.go"))
	assert.True(t, f.IsIndexable("node_modules/x.go"), "custom markers replace defaults")
}

func TestFilter_WithMarkers(t *testing.T) {
	base := NewFilter(nil, nil)
	extended := base.WithMarkers("fixtures", " ")

	assert.False(t, extended.IsIndexable("fixtures/sample.json"))
	assert.True(t, base.IsIndexable("fixtures/sample.json"), "original filter is unchanged")
	assert.False(t, extended.IsIndexable("node_modules/a.js"))
}

func TestFilter_ZeroValueRejects(t *testing.T) {
	var f Filter
	assert.False(t, f.IsIndexable("main.go"))
	assert.True(t, f.AllowDir("src"))
}

func TestParseIgnoreFile(t *testing.T) {
	content := `# comment
node_modules/
/coverage
*.log
!keep.log
docs/generated
.env

coverage
`
	names, err := ParseIgnoreFile(strings.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, []string{"node_modules", "coverage", ".env"}, names)
}
