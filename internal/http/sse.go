package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fyrsmithlabs/reporover/pkg/auth"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// handleProgress streams the caller's ingestion progress via Server-Sent
// Events.
//
// Only messages emitted after the client connects are delivered; there is
// no replay. The stream stays open until the client disconnects.
//
//	GET /api/progress
//
//	event: progress
//	data: scanning octo/repo
//
//	: heartbeat
func (s *Server) handleProgress(c echo.Context) error {
	owner := auth.OwnerID(c)
	msgs, cancel, err := s.svc.Progress.Subscribe(owner)
	if err != nil {
		return err
	}
	defer cancel()

	ctx := c.Request().Context()
	s.metrics.streamOpened(ctx)
	defer s.metrics.streamClosed(context.WithoutCancel(ctx))

	h := c.Response().Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no") // Disable nginx buffering
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Flush()

	// Heartbeat ticker to prevent proxy timeouts
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	w := c.Response()
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			fmt.Fprint(w, "event: progress\n")
			for _, line := range strings.Split(msg, "\n") {
				fmt.Fprintf(w, "data: %s\n", line)
			}
			fmt.Fprint(w, "\n")
			w.Flush()

		case <-ticker.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			w.Flush()

		case <-ctx.Done():
			s.logger.Debug("progress stream closed", zap.String("owner_id", owner))
			return nil
		}
	}
}
