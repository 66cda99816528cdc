package main

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/reporover/pkg/auth"
	"github.com/spf13/cobra"
)

func newAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <repo-url> <question...>",
		Short: "Ask a question about an ingested repository",
		Example: `  reporover ask octo/repo "How are requests authenticated?"
  reporover ask https://github.com/octo/repo where is the router defined`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), appOptions{generator: true, logToStderr: true})
			if err != nil {
				return err
			}
			defer a.Close()

			question := strings.Join(args[1:], " ")
			ans, err := a.chat.Ask(cmd.Context(), auth.LocalOwnerID(), args[0], question)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ans.Text)
			if len(ans.Sources) > 0 {
				fmt.Fprintln(out, "\nSources:")
				for _, s := range ans.Sources {
					fmt.Fprintf(out, "  %s\n", s)
				}
			}
			return nil
		},
	}
}
