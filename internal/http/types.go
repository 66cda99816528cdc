package http

import (
	"github.com/fyrsmithlabs/reporover/internal/conversation"
	"github.com/fyrsmithlabs/reporover/internal/repository"
)

// IngestRequest is the request body for POST /api/ingest.
type IngestRequest struct {
	RepoURL string `json:"repoUrl"`
	// Force bypasses the freshness gate.
	Force bool `json:"force"`
}

// IngestResponse is the response body for POST /api/ingest.
type IngestResponse struct {
	Message          string              `json:"message"`
	TotalFiles       int                 `json:"totalFiles"`
	Vectors          int                 `json:"vectors"`
	Skipped          bool                `json:"skipped"`
	FirstFilePreview *repository.Preview `json:"firstFilePreview,omitempty"`
}

// ChatRequest is the request body for POST /api/chat.
type ChatRequest struct {
	Question string `json:"question"`
	RepoURL  string `json:"repoUrl"`
}

// HistoryResponse is the response body for GET /api/history.
type HistoryResponse struct {
	RepoURL  string                 `json:"repoUrl"`
	Messages []conversation.Message `json:"messages"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// GenerationHealthResponse is the response body for GET /health/generation.
type GenerationHealthResponse struct {
	Message   string `json:"message"`
	Generator string `json:"generator"`
	Answer    string `json:"answer"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
