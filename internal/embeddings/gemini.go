package embeddings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// geminiBatchLimit is the most contents the API accepts in one request.
const geminiBatchLimit = 100

// GeminiConfig configures the Gemini embedding provider.
type GeminiConfig struct {
	APIKey string
	// Model defaults to text-embedding-004.
	Model string
	// Dimension requests a reduced output size when the model supports it.
	// Default: 768
	Dimension int
}

// GeminiProvider embeds text with the Gemini API.
type GeminiProvider struct {
	client  *genai.Client
	config  GeminiConfig
	metrics *Metrics
}

// NewGeminiProvider creates a Gemini provider.
func NewGeminiProvider(ctx context.Context, config GeminiConfig) (*GeminiProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini api key required", ErrInvalidConfig)
	}
	if config.Model == "" {
		config.Model = "text-embedding-004"
	}
	if config.Dimension == 0 {
		config.Dimension = 768
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing genai client: %w", err)
	}
	return &GeminiProvider{client: client, config: config, metrics: NewMetrics(nil)}, nil
}

// EmbedDocuments generates embeddings for multiple texts.
func (p *GeminiProvider) EmbedDocuments(ctx context.Context, texts []string) (vectors [][]float32, err error) {
	start := time.Now()
	defer func() {
		p.metrics.RecordGeneration(ctx, "gemini", "embed_documents", time.Since(start), len(texts), err)
	}()

	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}

	vectors = make([][]float32, 0, len(texts))
	for lo := 0; lo < len(texts); lo += geminiBatchLimit {
		hi := min(lo+geminiBatchLimit, len(texts))
		batch, err := p.embed(ctx, texts[lo:hi], "RETRIEVAL_DOCUMENT")
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	if err := checkBatch(vectors, len(texts), p.config.Dimension); err != nil {
		return nil, err
	}
	return vectors, nil
}

// EmbedQuery generates an embedding for a single query.
func (p *GeminiProvider) EmbedQuery(ctx context.Context, text string) (vector []float32, err error) {
	start := time.Now()
	defer func() {
		p.metrics.RecordGeneration(ctx, "gemini", "embed_query", time.Since(start), 1, err)
	}()

	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	vectors, err := p.embed(ctx, []string{text}, "RETRIEVAL_QUERY")
	if err != nil {
		return nil, err
	}
	if err := checkBatch(vectors, 1, p.config.Dimension); err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (p *GeminiProvider) embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}
	outputDim := int32(p.config.Dimension)

	result, err := p.client.Models.EmbedContent(ctx, p.config.Model, contents, &genai.EmbedContentConfig{
		TaskType:             taskType,
		OutputDimensionality: &outputDim,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if result == nil {
		return nil, fmt.Errorf("%w: no embedding returned", ErrEmbeddingFailed)
	}

	vectors := make([][]float32, len(result.Embeddings))
	for i, e := range result.Embeddings {
		if e != nil {
			vectors[i] = e.Values
		}
	}
	return vectors, nil
}

// Dimension returns the configured output dimension.
func (p *GeminiProvider) Dimension() int {
	return p.config.Dimension
}

// Close is a no-op; genai.Client holds no resources that need releasing.
func (p *GeminiProvider) Close() error {
	return nil
}
