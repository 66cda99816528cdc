package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/fyrsmithlabs/reporover/internal/conversation"
	"github.com/fyrsmithlabs/reporover/internal/repository"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

type repoIngestInput struct {
	RepoURL string `json:"repo_url" jsonschema:"GitHub repository URL or owner/repo"`
	Force   bool   `json:"force,omitempty" jsonschema:"Re-ingest even if the repository was indexed recently"`
}

type repoIngestOutput struct {
	Repository string              `json:"repository"`
	Files      int                 `json:"files"`
	Downloaded int                 `json:"downloaded"`
	Vectors    int                 `json:"vectors"`
	Skipped    bool                `json:"skipped"`
	Preview    *repository.Preview `json:"preview,omitempty"`
}

type repoAskInput struct {
	RepoURL  string `json:"repo_url" jsonschema:"Repository the question is about"`
	Question string `json:"question" jsonschema:"Question about the repository's code"`
}

type repoAskOutput struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

type repoHistoryInput struct {
	RepoURL string `json:"repo_url,omitempty" jsonschema:"Repository whose chat to return; omit to list repositories"`
}

type historyRepo struct {
	RepoURL       string `json:"repo_url"`
	RepositoryKey string `json:"repository_key"`
	LastAccessed  string `json:"last_accessed"`
}

type historyMessage struct {
	Role      string `json:"role"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

type repoHistoryOutput struct {
	Repositories []historyRepo    `json:"repositories,omitempty"`
	Messages     []historyMessage `json:"messages,omitempty"`
}

// instrument wraps a tool body with call metrics and error logging. The
// body reports the outcome recorded for a successful call.
func instrument[In, Out any](s *Server, name string, fn func(context.Context, In) (Out, string, error)) mcp.ToolHandlerFor[In, Out] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, args In) (*mcp.CallToolResult, Out, error) {
		start := time.Now()
		out, outcome, err := fn(ctx, args)
		if err != nil {
			s.metrics.record(ctx, name, outcomeError, time.Since(start), err)
			s.logger.Warn("tool call failed", zap.String("tool", name), zap.Error(err))
			var zero Out
			return nil, zero, err
		}
		s.metrics.record(ctx, name, outcome, time.Since(start), nil)
		return nil, out, nil
	}
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "repo_ingest",
		Description: "Crawl a GitHub repository and index its source files for question answering",
	}, instrument(s, "repo_ingest", func(ctx context.Context, args repoIngestInput) (repoIngestOutput, string, error) {
		res, err := s.ingest.Ingest(ctx, s.ownerID, args.RepoURL, args.Force)
		if err != nil {
			return repoIngestOutput{}, "", err
		}
		outcome := outcomeIngested
		if res.Skipped {
			outcome = outcomeSkipped
		}
		s.metrics.addVectors(ctx, res.Vectors)
		return repoIngestOutput{
			Repository: res.Repository.Key,
			Files:      res.Files,
			Downloaded: res.Downloaded,
			Vectors:    res.Vectors,
			Skipped:    res.Skipped,
			Preview:    res.Preview,
		}, outcome, nil
	}))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "repo_ask",
		Description: "Answer a question about an ingested repository from its indexed code",
	}, instrument(s, "repo_ask", func(ctx context.Context, args repoAskInput) (repoAskOutput, string, error) {
		ans, err := s.chat.Ask(ctx, s.ownerID, args.RepoURL, args.Question)
		if err != nil {
			return repoAskOutput{}, "", err
		}
		out := repoAskOutput{Answer: ans.Text, Sources: ans.Sources}
		if len(out.Sources) == 0 {
			// Nothing retrieved; the answer is the model's fallback.
			out.Sources = []string{}
			return out, outcomeNoContext, nil
		}
		return out, outcomeAnswered, nil
	}))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "repo_history",
		Description: "List ingested repositories, or return the chat for one repository",
	}, instrument(s, "repo_history", func(ctx context.Context, args repoHistoryInput) (repoHistoryOutput, string, error) {
		if args.RepoURL == "" {
			list, err := s.history.List(ctx, s.ownerID)
			if err != nil {
				return repoHistoryOutput{}, "", err
			}
			out := repoHistoryOutput{Repositories: make([]historyRepo, 0, len(list))}
			for _, r := range list {
				out.Repositories = append(out.Repositories, historyRepo{
					RepoURL:       r.RepoURL,
					RepositoryKey: r.RepositoryKey,
					LastAccessed:  r.LastAccessed.UTC().Format(time.RFC3339),
				})
			}
			return out, outcomeListed, nil
		}
		repo, err := repository.ParseRepositoryURL(args.RepoURL)
		if err != nil {
			return repoHistoryOutput{}, "", err
		}
		rec, err := s.history.Get(ctx, s.ownerID, repo.Key)
		if errors.Is(err, conversation.ErrNotFound) {
			return repoHistoryOutput{}, outcomeUnknown, nil
		}
		if err != nil {
			return repoHistoryOutput{}, "", err
		}
		out := repoHistoryOutput{Messages: make([]historyMessage, 0, len(rec.Messages))}
		for _, m := range rec.Messages {
			out.Messages = append(out.Messages, historyMessage{
				Role:      string(m.Role),
				Text:      m.Text,
				Timestamp: m.Timestamp.UTC().Format(time.RFC3339),
			})
		}
		return out, outcomeFound, nil
	}))
}
