package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fyrsmithlabs/reporover/internal/vectorstore"
)

// fakeHost serves a tree built from file paths and records every listing.
type fakeHost struct {
	mu       sync.Mutex
	dirs     map[string][]Entry
	content  map[string]string
	failList map[string]bool
	failGet  map[string]bool
	listed   []string
}

func newFakeHost(files map[string]string) *fakeHost {
	h := &fakeHost{
		dirs:     map[string][]Entry{},
		content:  map[string]string{},
		failList: map[string]bool{},
		failGet:  map[string]bool{},
	}
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	seenDir := map[string]bool{}
	for _, p := range paths {
		locator := "mem://" + p
		h.content[locator] = files[p]

		parts := strings.Split(p, "/")
		for i := 0; i < len(parts)-1; i++ {
			parent := strings.Join(parts[:i], "/")
			dir := strings.Join(parts[:i+1], "/")
			if !seenDir[dir] {
				seenDir[dir] = true
				h.dirs[parent] = append(h.dirs[parent], Entry{Name: parts[i], Path: dir, Kind: EntryDir})
			}
		}
		parent := strings.Join(parts[:len(parts)-1], "/")
		h.dirs[parent] = append(h.dirs[parent], Entry{
			Name:           parts[len(parts)-1],
			Path:           p,
			Kind:           EntryFile,
			ContentLocator: locator,
		})
	}
	return h
}

func (h *fakeHost) ListDirectory(_ context.Context, _, _, path string) ([]Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listed = append(h.listed, path)
	if h.failList[path] {
		return nil, errors.New("403 forbidden")
	}
	return h.dirs[path], nil
}

func (h *fakeHost) FetchContent(_ context.Context, locator string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failGet[locator] {
		return "", errors.New("connection reset")
	}
	c, ok := h.content[locator]
	if !ok {
		return "", fmt.Errorf("no such locator %s", locator)
	}
	return c, nil
}

func (h *fakeHost) listedPaths() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.listed...)
}

// fakeEmbedder maps text to a small deterministic vector.
type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	fail  func(text string) bool
}

func (e *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if e.fail != nil && e.fail(t) {
			return nil, errors.New("quota exceeded")
		}
		out[i] = []float32{float32(len(t)%7) + 1, 1, 0.5}
	}
	return out, nil
}

func (e *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	v, err := e.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

// recordingStore keeps upserted batches in memory.
type recordingStore struct {
	mu      sync.Mutex
	batches [][]vectorstore.VectorRecord
	err     error
}

func (s *recordingStore) Upsert(_ context.Context, records []vectorstore.VectorRecord) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, records)
	return nil
}

func (s *recordingStore) Query(context.Context, []float32, int, map[string]string) ([]vectorstore.SearchResult, error) {
	return nil, nil
}

func (s *recordingStore) Count(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n, nil
}

func (s *recordingStore) Close() error { return nil }

func (s *recordingStore) all() []vectorstore.VectorRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []vectorstore.VectorRecord
	for _, b := range s.batches {
		out = append(out, b...)
	}
	return out
}

// collectEmitter remembers every message.
type collectEmitter struct {
	mu   sync.Mutex
	msgs []string
}

func (c *collectEmitter) Emit(_ context.Context, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
}

func (c *collectEmitter) messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.msgs...)
}

type embedCall struct {
	file       int
	start, end time.Time
}

// pacedEmbedder holds every call for hold and records which file it served
// and how many files were being embedded at once.
type pacedEmbedder struct {
	hold    time.Duration
	markers []string

	mu        sync.Mutex
	calls     []embedCall
	active    int
	maxActive int
}

func (e *pacedEmbedder) fileOf(text string) int {
	for i, m := range e.markers {
		if strings.Contains(text, m) {
			return i
		}
	}
	return -1
}

func (e *pacedEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	call := embedCall{file: e.fileOf(texts[0]), start: time.Now()}
	e.mu.Lock()
	e.active++
	e.maxActive = max(e.maxActive, e.active)
	e.mu.Unlock()

	time.Sleep(e.hold)

	e.mu.Lock()
	e.active--
	call.end = time.Now()
	e.calls = append(e.calls, call)
	e.mu.Unlock()

	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (e *pacedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	v, err := e.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}
