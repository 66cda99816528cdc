package vectorstore

// Metadata keys as stored by every backend.
const (
	MetaPath          = "path"
	MetaContent       = "content"
	MetaRepositoryKey = "repository_key"
)

// Metadata travels with every stored vector.
type Metadata struct {
	Path          string `json:"path"`
	Content       string `json:"content"`
	RepositoryKey string `json:"repository_key"`
}

// VectorRecord is one embedded chunk ready to be written.
type VectorRecord struct {
	ID       string
	Vector   []float32
	Metadata Metadata
}

// SearchResult represents a search result from the vector store.
type SearchResult struct {
	ID string

	// Score is the similarity score (higher = more similar)
	Score float32

	Metadata Metadata
}

func (m Metadata) toMap() map[string]string {
	return map[string]string{
		MetaPath:          m.Path,
		MetaContent:       m.Content,
		MetaRepositoryKey: m.RepositoryKey,
	}
}

func metadataFromMap(m map[string]string) Metadata {
	return Metadata{
		Path:          m[MetaPath],
		Content:       m[MetaContent],
		RepositoryKey: m[MetaRepositoryKey],
	}
}
