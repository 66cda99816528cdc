package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fyrsmithlabs/reporover/internal/progress"
	"github.com/fyrsmithlabs/reporover/internal/repository"
	"github.com/fyrsmithlabs/reporover/pkg/auth"
	"github.com/spf13/cobra"
)

// lineEmitter prints progress messages, one per line.
type lineEmitter struct {
	mu sync.Mutex
	w  io.Writer
}

func (e *lineEmitter) Emit(_ context.Context, msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fmt.Fprintln(e.w, msg)
}

func newIngestCmd() *cobra.Command {
	var (
		force bool
		quiet bool
	)
	cmd := &cobra.Command{
		Use:   "ingest <repo-url>",
		Short: "Crawl and index a repository",
		Long: `Crawl a GitHub repository, download its source files, and index them.

A repository ingested within ingest.freshness_window is skipped unless
--force is given.

Examples:
  reporover ingest https://github.com/octo/repo
  reporover ingest octo/repo --force`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var emitters []progress.Emitter
			if !quiet {
				emitters = append(emitters, &lineEmitter{w: cmd.ErrOrStderr()})
			}
			a, err := newApp(cmd.Context(), appOptions{logToStderr: true, emitters: emitters})
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.ingest.Ingest(cmd.Context(), auth.LocalOwnerID(), args[0], force)
			if err != nil {
				return err
			}

			printIngestResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "re-ingest even if the repository is fresh")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print progress")
	return cmd
}

func printIngestResult(w io.Writer, res *repository.IngestResult) {
	if res.Skipped {
		fmt.Fprintf(w, "%s was ingested recently; use --force to re-ingest\n", res.Repository.Key)
		return
	}
	fmt.Fprintf(w, "Repository: %s\n", res.Repository.Key)
	fmt.Fprintf(w, "Files:      %d downloaded, %d indexed\n", res.Downloaded, res.Files)
	fmt.Fprintf(w, "Vectors:    %d\n", res.Vectors)
	if res.Preview != nil {
		fmt.Fprintf(w, "\n%s\n%s\n", res.Preview.Path, res.Preview.ContentSnippet)
	}
}
