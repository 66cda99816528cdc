// Package generation produces answers from a language model.
package generation

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/reporover/internal/config"
)

var (
	// ErrInvalidConfig indicates a provider could not be configured.
	ErrInvalidConfig = errors.New("invalid generation configuration")

	// ErrEmptyResponse indicates the model returned no text.
	ErrEmptyResponse = errors.New("model returned no text")
)

// Request is one single-turn generation.
type Request struct {
	// System is the instruction the model follows.
	System string
	// Prompt is the user turn.
	Prompt string
}

// Generator produces text for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	// Name identifies the provider and model, e.g. "gemini/gemini-2.5-flash".
	Name() string
}

// Options are the provider-independent knobs.
type Options struct {
	Model       string
	APIKey      string
	BaseURL     string
	MaxTokens   int
	Temperature float64
}

const defaultMaxTokens = 2048

// New builds the Generator named by cfg.Provider.
func New(ctx context.Context, cfg config.GenerationConfig) (Generator, error) {
	opts := Options{
		Model:       cfg.Model,
		APIKey:      cfg.APIKey.Value(),
		BaseURL:     cfg.BaseURL,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}

	var (
		g   Generator
		err error
	)
	switch cfg.Provider {
	case "gemini", "":
		g, err = NewGemini(ctx, opts)
	case "anthropic":
		g, err = NewAnthropic(opts)
	case "openai":
		g, err = NewOpenAI(opts)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}
