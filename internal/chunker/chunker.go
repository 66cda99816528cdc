// Package chunker splits file content into overlapping windows for embedding.
//
// Every chunk is an exact substring of its input. Chunk i+1 starts up to
// Overlap bytes before chunk i ends, so dropping each chunk's Overlap prefix
// and concatenating reproduces the input byte for byte.
package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultChunkSize is the maximum chunk length in bytes.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is the maximum shared margin between neighbours.
	DefaultChunkOverlap = 200
)

// separators are tried in order when choosing where a chunk ends.
var separators = []string{"\n\n", "\n", " "}

// Span is one window of the input.
type Span struct {
	Text string
	// Offset is the byte offset of Text in the input.
	Offset int
	// Overlap is how many leading bytes of Text repeat the previous span.
	Overlap int
}

// Splitter is deterministic: boundaries depend only on size, overlap and text.
type Splitter struct {
	size    int
	overlap int
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithChunkSize sets the maximum chunk length in bytes.
func WithChunkSize(size int) Option {
	return func(s *Splitter) { s.size = size }
}

// WithOverlap sets the maximum overlap in bytes.
func WithOverlap(overlap int) Option {
	return func(s *Splitter) { s.overlap = overlap }
}

// New returns a Splitter. It requires size > 0 and 0 <= overlap < size.
func New(opts ...Option) (*Splitter, error) {
	s := &Splitter{size: DefaultChunkSize, overlap: DefaultChunkOverlap}
	for _, opt := range opts {
		opt(s)
	}
	if s.size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", s.size)
	}
	if s.overlap < 0 || s.overlap >= s.size {
		return nil, fmt.Errorf("overlap must be in [0, %d), got %d", s.size, s.overlap)
	}
	return s, nil
}

// Size returns the configured maximum chunk length.
func (s *Splitter) Size() int { return s.size }

// Overlap returns the configured maximum overlap.
func (s *Splitter) Overlap() int { return s.overlap }

// Split returns chunk texts. Empty or whitespace-only text yields none.
func (s *Splitter) Split(text string) []string {
	spans := s.SplitSpans(text)
	out := make([]string, len(spans))
	for i, sp := range spans {
		out[i] = sp.Text
	}
	return out
}

// SplitSpans returns chunks with their offsets and overlap lengths.
func (s *Splitter) SplitSpans(text string) []Span {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	n := len(text)
	var spans []Span
	start, prevEnd := 0, 0

	for prevEnd < n {
		end := s.chooseEnd(text, start, prevEnd)
		spans = append(spans, Span{
			Text:    text[start:end],
			Offset:  start,
			Overlap: prevEnd - start,
		})
		if end == n {
			break
		}
		start = s.nextStart(text, start, end)
		prevEnd = end
	}
	return spans
}

// chooseEnd picks the end of the chunk starting at start. The end always
// lies past prevEnd so each chunk contributes new text.
func (s *Splitter) chooseEnd(text string, start, prevEnd int) int {
	n := len(text)
	hi := start + s.size
	if hi >= n {
		return n
	}

	// Prefer a boundary that keeps the chunk at least a quarter full.
	lo := start + s.size/4
	if lo <= prevEnd {
		lo = prevEnd + 1
	}

	for _, sep := range separators {
		if lo >= hi {
			break
		}
		if idx := strings.LastIndex(text[lo:hi], sep); idx >= 0 {
			return lo + idx + len(sep)
		}
	}

	// Fixed-width cut, backed off to a rune boundary.
	end := hi
	for end > prevEnd+1 && !utf8.RuneStart(text[end]) {
		end--
	}
	return end
}

// nextStart places the next chunk up to overlap bytes before end, nudged
// forward to a word boundary when one exists inside the overlap.
func (s *Splitter) nextStart(text string, start, end int) int {
	next := end - s.overlap
	if next <= start {
		next = start + 1
	}
	if next >= end {
		return end
	}
	if idx := strings.IndexAny(text[next:end], " \n\t"); idx >= 0 && next+idx+1 < end {
		next += idx + 1
	}
	for next < end && !utf8.RuneStart(text[next]) {
		next++
	}
	return next
}
