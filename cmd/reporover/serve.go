package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	httpserver "github.com/fyrsmithlabs/reporover/internal/http"
	"github.com/fyrsmithlabs/reporover/pkg/auth"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API on server.host:server.port.

The /api routes require a bearer token signed with auth.jwt_secret. Without a
secret every request belongs to the local owner.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

// runServe blocks until ctx is cancelled, then shuts down within
// server.shutdown_timeout.
func runServe(ctx context.Context) error {
	a, err := newApp(ctx, appOptions{generator: true})
	if err != nil {
		return err
	}
	defer a.Close()

	verifier := auth.NewVerifier(a.cfg.Auth.JWTSecret.Value())
	if verifier == nil {
		a.logger.Warn("auth.jwt_secret not set, serving every request as the local owner")
	}

	srv, err := httpserver.NewServer(httpserver.Services{
		Ingest:    a.ingest,
		Chat:      a.chat,
		History:   a.history,
		Progress:  a.source,
		Generator: a.generator,
		Verifier:  verifier,
	}, a.logger, &a.cfg.Server)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := a.cfg.Server.ShutdownTimeout.Duration()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("shutdown failed", zap.Error(err))
		return err
	}
	return nil
}
