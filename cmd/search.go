package cmd

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func searchCmd() *cobra.Command {
	var query string
	var limit int

	var required = []string{"query"}

	command := &cobra.Command{
		Use:     "search",
		Short:   "search the pages of a wiki",
		Example: "wikinote search -q <text> -l 10",
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkMissingFlags(cmd, required) {
				return nil
			}

			a, _, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			pages, err := a.Service.Search(requestContext(), query, limit)
			if err != nil {
				return err
			}

			printPages(pages)
			return nil
		},
	}

	command.Flags().StringVarP(&query, "query", "q", "", "text to look for (required)")
	command.Flags().IntVarP(&limit, "limit", "l", 20, "maximum number of pages")

	return command
}

func reindexCmd() *cobra.Command {
	var run bool

	command := &cobra.Command{
		Use:   "reindex",
		Short: "schedule a search sync of every page, needs --admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := requestContext()
			n, err := a.Service.Reindex(ctx)
			if err != nil {
				return err
			}
			color.Green("scheduled %d pages\n", n)

			if run {
				return a.Worker.Drain(ctx)
			}

			return nil
		},
	}

	command.Flags().BoolVar(&run, "run", false, "run the scheduled tasks before exiting")

	return command
}
