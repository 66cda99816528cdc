// Package ignore decides which repository paths are worth indexing.
package ignore

import (
	"bufio"
	"io"
	"path"
	"strings"
)

// DefaultMarkers are path segments that exclude a whole subtree or file:
// VCS metadata, dependency and build output directories, and lockfiles.
var DefaultMarkers = []string{
	".git", ".svn", ".hg",
	"node_modules", "vendor", "bower_components",
	".venv", "venv", "__pycache__",
	"dist", "build", "out", "target", ".next", ".nuxt", "coverage",
	".idea", ".vscode", ".cache",
	"package-lock.json", "yarn.lock", "pnpm-lock.yaml",
	"go.sum", "Cargo.lock", "poetry.lock", "composer.lock", "Gemfile.lock",
}

// DefaultExtensions are the file suffixes accepted for indexing.
var DefaultExtensions = []string{
	".js", ".jsx", ".ts", ".tsx", ".py", ".java", ".cpp", ".h",
	".html", ".css", ".json", ".md",
	".go", ".rs", ".rb", ".c", ".cs", ".kt", ".swift",
	".yaml", ".yml", ".toml", ".sql", ".sh",
}

// DefaultBasenames are extensionless files accepted for indexing.
var DefaultBasenames = []string{"Dockerfile", "Makefile"}

// Filter is a pure predicate over slash-separated repository paths.
// The zero value rejects every file.
type Filter struct {
	markers    map[string]bool
	extensions map[string]bool
	basenames  map[string]bool
}

// NewFilter builds a Filter. Nil slices select the defaults; empty non-nil
// slices select nothing.
func NewFilter(markers, extensions []string) *Filter {
	if markers == nil {
		markers = DefaultMarkers
	}
	if extensions == nil {
		extensions = DefaultExtensions
	}
	f := &Filter{
		markers:    toSet(markers),
		extensions: make(map[string]bool, len(extensions)),
		basenames:  toSet(DefaultBasenames),
	}
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		f.extensions[ext] = true
	}
	return f
}

// WithMarkers returns a copy of f with extra markers added.
func (f *Filter) WithMarkers(extra ...string) *Filter {
	clone := &Filter{
		markers:    make(map[string]bool, len(f.markers)+len(extra)),
		extensions: f.extensions,
		basenames:  f.basenames,
	}
	for m := range f.markers {
		clone.markers[m] = true
	}
	for _, m := range extra {
		if m = strings.TrimSpace(m); m != "" {
			clone.markers[m] = true
		}
	}
	return clone
}

// AllowDir reports whether a directory should be recursed into.
func (f *Filter) AllowDir(p string) bool {
	return !f.hasMarker(p)
}

// IsIndexable reports whether a file path should be indexed. A path
// containing any marker segment is rejected regardless of its extension.
func (f *Filter) IsIndexable(p string) bool {
	if p == "" || f.hasMarker(p) {
		return false
	}
	base := path.Base(p)
	if f.basenames[base] {
		return true
	}
	ext := strings.ToLower(path.Ext(base))
	return ext != "" && f.extensions[ext]
}

func (f *Filter) hasMarker(p string) bool {
	for _, seg := range strings.Split(strings.Trim(p, "/"), "/") {
		if f.markers[seg] {
			return true
		}
	}
	return false
}

// ParseIgnoreFile reads gitignore-style content and returns the plain names
// it lists. Globs, negations, comments and nested paths are skipped since a
// marker matches a single path segment.
func ParseIgnoreFile(r io.Reader) ([]string, error) {
	var names []string
	seen := map[string]bool{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		name := parseLine(scanner.Text())
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return names, nil
}

func parseLine(line string) string {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
		return ""
	}
	line = strings.TrimPrefix(line, "/")
	line = strings.TrimSuffix(line, "/")
	if line == "" || strings.ContainsAny(line, "*?[]/\\") {
		return ""
	}
	return line
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[it] = true
	}
	return set
}
