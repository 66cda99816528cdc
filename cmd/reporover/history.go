package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fyrsmithlabs/reporover/internal/conversation"
	"github.com/fyrsmithlabs/reporover/internal/repository"
	"github.com/fyrsmithlabs/reporover/pkg/auth"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history [repo-url]",
		Short: "List ingested repositories, or show the chat for one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), appOptions{logToStderr: true})
			if err != nil {
				return err
			}
			defer a.Close()

			owner := auth.LocalOwnerID()
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				list, err := a.history.List(cmd.Context(), owner)
				if err != nil {
					return err
				}
				return printRepos(out, list)
			}

			repo, err := repository.ParseRepositoryURL(args[0])
			if err != nil {
				return err
			}
			rec, err := a.history.Get(cmd.Context(), owner, repo.Key)
			if errors.Is(err, conversation.ErrNotFound) {
				fmt.Fprintf(out, "no history for %s\n", repo.Key)
				return nil
			}
			if err != nil {
				return err
			}
			printMessages(out, rec.Messages)
			return nil
		},
	}
}

func printRepos(w io.Writer, list []conversation.Summary) error {
	if len(list) == 0 {
		fmt.Fprintln(w, "no repositories ingested yet")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "REPOSITORY\tLAST ACCESSED\tURL")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.RepositoryKey, s.LastAccessed.Local().Format(time.DateTime), s.RepoURL)
	}
	return tw.Flush()
}

func printMessages(w io.Writer, msgs []conversation.Message) {
	for _, m := range msgs {
		fmt.Fprintf(w, "[%s] %s:\n%s\n\n", m.Timestamp.Local().Format(time.DateTime), m.Role, m.Text)
	}
}
