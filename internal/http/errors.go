package http

import (
	"errors"
	"net/http"

	"github.com/fyrsmithlabs/reporover/internal/repository"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// statusFor maps a handler error to its status and client-facing message.
// Input errors keep their message; anything else is reported generically.
func statusFor(err error) (int, string) {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		if m, ok := he.Message.(string); ok {
			return he.Code, m
		}
		return he.Code, http.StatusText(he.Code)
	case errors.Is(err, repository.ErrInvalidRepositoryURL), errors.Is(err, repository.ErrMissingInput):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// handleError writes every handler error as {"error": ...}. Server-side
// failures are logged.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, ErrorResponse{Error: msg})
	}
	if err != nil {
		s.logger.Warn("writing error response", zap.Error(err))
	}
}
