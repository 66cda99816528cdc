package main

import (
	"github.com/fyrsmithlabs/reporover/internal/mcp"
	"github.com/fyrsmithlabs/reporover/pkg/auth"
	"github.com/spf13/cobra"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run an MCP server on stdio",
		Long: `Run a Model Context Protocol server on stdin/stdout exposing the
repo_ingest, repo_ask and repo_history tools. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), appOptions{generator: true, logToStderr: true})
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := mcp.NewServer(&mcp.Config{
				Name:    "reporover",
				Version: version,
				OwnerID: auth.LocalOwnerID(),
				Logger:  a.logger,
			}, a.ingest, a.chat, a.history)
			if err != nil {
				return err
			}
			return s.Run(cmd.Context())
		},
	}
}
