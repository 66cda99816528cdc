package chunker

// Chunk is one window of a file, tagged with where it came from.
type Chunk struct {
	Text          string
	SourcePath    string
	RepositoryKey string
	Index         int
	Overlap       int
}

// ChunkFile splits content and tags every window with path and key. Chunks
// never span two files.
func (s *Splitter) ChunkFile(path, repositoryKey, content string) []Chunk {
	spans := s.SplitSpans(content)
	if len(spans) == 0 {
		return nil
	}
	chunks := make([]Chunk, len(spans))
	for i, sp := range spans {
		chunks[i] = Chunk{
			Text:          sp.Text,
			SourcePath:    path,
			RepositoryKey: repositoryKey,
			Index:         i,
			Overlap:       sp.Overlap,
		}
	}
	return chunks
}

// Reassemble joins chunks produced from one file back into its content.
func Reassemble(chunks []Chunk) string {
	var n int
	for _, c := range chunks {
		n += len(c.Text) - c.Overlap
	}
	buf := make([]byte, 0, n)
	for _, c := range chunks {
		buf = append(buf, c.Text[c.Overlap:]...)
	}
	return string(buf)
}
