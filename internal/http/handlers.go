package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/fyrsmithlabs/reporover/internal/conversation"
	"github.com/fyrsmithlabs/reporover/internal/repository"
	"github.com/fyrsmithlabs/reporover/pkg/auth"
	"github.com/labstack/echo/v4"
)

func (s *Server) handleIngest(c echo.Context) error {
	var req IngestRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.RepoURL == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Repo URL required")
	}

	// A client disconnect must not abort a run halfway through upserts.
	ctx := context.WithoutCancel(c.Request().Context())
	res, err := s.svc.Ingest.Ingest(ctx, auth.OwnerID(c), req.RepoURL, req.Force)
	if err != nil {
		return err
	}

	resp := IngestResponse{
		Message:          "Scan & Download Successful!",
		TotalFiles:       res.Downloaded,
		Vectors:          res.Vectors,
		Skipped:          res.Skipped,
		FirstFilePreview: res.Preview,
	}
	if res.Skipped {
		resp.Message = "Repository was ingested recently, skipped"
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.RepoURL == "" || req.Question == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question and repoUrl are required")
	}

	answer, err := s.svc.Chat.Ask(c.Request().Context(), auth.OwnerID(c), req.RepoURL, req.Question)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, answer)
}

func (s *Server) handleHistory(c echo.Context) error {
	repoURL := c.QueryParam("repoUrl")
	repo, err := repository.ParseRepositoryURL(repoURL)
	if err != nil {
		return err
	}

	rec, err := s.svc.History.Get(c.Request().Context(), auth.OwnerID(c), repo.Key)
	if errors.Is(err, conversation.ErrNotFound) {
		return c.JSON(http.StatusOK, HistoryResponse{RepoURL: repo.URL, Messages: []conversation.Message{}})
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, HistoryResponse{RepoURL: rec.RepoURL, Messages: rec.Messages})
}

func (s *Server) handleHistoryRepos(c echo.Context) error {
	list, err := s.svc.History.List(c.Request().Context(), auth.OwnerID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}
