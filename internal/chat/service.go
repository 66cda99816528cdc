// Package chat answers questions about an ingested repository.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reporover/internal/config"
	"github.com/fyrsmithlabs/reporover/internal/conversation"
	"github.com/fyrsmithlabs/reporover/internal/generation"
	"github.com/fyrsmithlabs/reporover/internal/logging"
	"github.com/fyrsmithlabs/reporover/internal/repository"
	"github.com/fyrsmithlabs/reporover/internal/retrieval"
)

// NoContextAnswer is returned when nothing relevant was retrieved.
const NoContextAnswer = "I couldn't find any relevant code in the repository to answer this."

var tracer = otel.Tracer("reporover.chat")

// Retriever finds chunks for a question.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int, key string) ([]retrieval.RetrievedChunk, error)
}

// History records the conversation.
type History interface {
	AppendMessage(ctx context.Context, ownerID, repositoryKey, repoURL string, msg conversation.Message) error
	Touch(ctx context.Context, ownerID, repositoryKey, repoURL string, at time.Time) error
}

// Answer is the reply to one question.
type Answer struct {
	Text    string   `json:"answer"`
	Sources []string `json:"sources"`
}

// Service runs retrieval-augmented question answering.
type Service struct {
	retriever  Retriever
	generator  generation.Generator
	history    History
	topK       int
	maxContext int
	logger     *zap.Logger
	now        func() time.Time
}

// NewService creates a Service. history may be nil.
func NewService(cfg config.ChatConfig, retriever Retriever, generator generation.Generator, history History, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = retrieval.DefaultTopK
	}
	return &Service{
		retriever:  retriever,
		generator:  generator,
		history:    history,
		topK:       topK,
		maxContext: cfg.MaxContextBytes,
		logger:     logger,
		now:        time.Now,
	}
}

// Ask answers question about the repository at repoURL for ownerID. An
// empty retrieval yields NoContextAnswer without calling the model.
func (s *Service) Ask(ctx context.Context, ownerID, repoURL, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question", repository.ErrMissingInput)
	}
	repo, err := repository.ParseRepositoryURL(repoURL)
	if err != nil {
		return nil, err
	}

	ctx = logging.WithOwnerID(ctx, ownerID)
	logger := s.logger.With(logging.Fields(ctx, zap.String("repository", repo.Key))...)

	ctx, span := tracer.Start(ctx, "chat.ask")
	defer span.End()
	span.SetAttributes(attribute.String("repository", repo.Key))

	s.record(ctx, logger, ownerID, repo, conversation.RoleUser, question)

	chunks, err := s.retriever.Retrieve(ctx, question, s.topK, repo.Key)
	if err != nil {
		return nil, fmt.Errorf("retrieving context: %w", err)
	}
	span.SetAttributes(attribute.Int("chunks", len(chunks)))

	answer := &Answer{Sources: []string{}}
	if len(chunks) == 0 {
		logger.Info("no context found")
		answer.Text = NoContextAnswer
	} else {
		contextText, used := buildContext(chunks, s.maxContext)
		if used < len(chunks) {
			logger.Debug("context truncated", zap.Int("kept", used), zap.Int("retrieved", len(chunks)))
		}
		text, err := s.generator.Generate(ctx, generation.Request{
			System: systemPrompt,
			Prompt: buildPrompt(question, contextText),
		})
		if err != nil {
			return nil, fmt.Errorf("generating answer: %w", err)
		}
		answer.Text = text
		answer.Sources = sources(chunks)
	}

	s.record(ctx, logger, ownerID, repo, conversation.RoleBot, answer.Text)
	if s.history != nil && ownerID != "" {
		if err := s.history.Touch(ctx, ownerID, repo.Key, repo.URL, s.now()); err != nil {
			logger.Warn("refreshing last access failed", zap.Error(err))
		}
	}
	return answer, nil
}

// record appends a message. History failures never fail a question.
func (s *Service) record(ctx context.Context, logger *zap.Logger, ownerID string, repo repository.Repository, role conversation.Role, text string) {
	if s.history == nil || ownerID == "" {
		return
	}
	msg := conversation.Message{Role: role, Text: text, Timestamp: s.now()}
	if err := s.history.AppendMessage(ctx, ownerID, repo.Key, repo.URL, msg); err != nil {
		logger.Warn("recording message failed", zap.String("role", string(role)), zap.Error(err))
	}
}
