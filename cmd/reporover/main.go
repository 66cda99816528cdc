// Package main implements the reporover CLI: the HTTP server, one-shot
// ingestion and questions, history, and an MCP stdio server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	// configPath overrides ~/.config/reporover/config.yaml
	configPath string

	// version information, set via ldflags
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "reporover",
		Short: "Ask questions about a GitHub repository's code",
		Long: `reporover crawls a GitHub repository, indexes its source files in a
vector store, and answers questions about the code with a language model.

Examples:
  # Index a repository
  reporover ingest https://github.com/octo/repo

  # Ask about it
  reporover ask octo/repo "Where is authentication handled?"

  # Serve the HTTP API
  reporover serve`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/reporover/config.yaml)")
	root.AddCommand(
		newServeCmd(),
		newIngestCmd(),
		newAskCmd(),
		newHistoryCmd(),
		newMCPCmd(),
		newTokenCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "reporover by Fyrsmith Labs\n")
			fmt.Fprintf(out, "Version:    %s\n", version)
			fmt.Fprintf(out, "Commit:     %s\n", gitCommit)
			fmt.Fprintf(out, "Build Date: %s\n", buildDate)
		},
	}
}
