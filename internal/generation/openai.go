package generation

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAI generates through any OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	llm  *openai.LLM
	opts Options
}

// NewOpenAI creates an OpenAI-compatible generator. A key is optional when
// BaseURL points at a local server.
func NewOpenAI(opts Options) (*OpenAI, error) {
	if opts.Model == "" {
		opts.Model = defaultOpenAIModel
	}
	token := opts.APIKey
	if token == "" {
		if opts.BaseURL == "" {
			return nil, fmt.Errorf("%w: openai api key required", ErrInvalidConfig)
		}
		token = "unused"
	}

	llmOpts := []openai.Option{
		openai.WithModel(opts.Model),
		openai.WithToken(token),
	}
	if opts.BaseURL != "" {
		llmOpts = append(llmOpts, openai.WithBaseURL(opts.BaseURL))
	}
	llm, err := openai.New(llmOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating openai client: %w", err)
	}
	return &OpenAI{llm: llm, opts: opts}, nil
}

// Name implements Generator.
func (o *OpenAI) Name() string { return "openai/" + o.opts.Model }

// Generate implements Generator.
func (o *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	var msgs []llms.MessageContent
	if req.System != "" {
		msgs = append(msgs, llms.TextParts(schema.ChatMessageTypeSystem, req.System))
	}
	msgs = append(msgs, llms.TextParts(schema.ChatMessageTypeHuman, req.Prompt))

	resp, err := o.llm.GenerateContent(ctx, msgs,
		llms.WithTemperature(o.opts.Temperature),
		llms.WithMaxTokens(o.opts.MaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("openai generate: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Content == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Content, nil
}
