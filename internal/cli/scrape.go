package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newScrapeCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "scrape",
		Short: "Run the discovery scraper once and print its log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, open, func(ctx context.Context, rt *Runtime) error {
				if rt.Scraper == nil {
					return fmt.Errorf("scraper is not configured")
				}
				res, runErr := rt.Scraper.Run(ctx)
				out := cmd.OutOrStdout()
				for _, line := range res.Logs {
					fmt.Fprintln(out, line)
				}
				if runErr != nil {
					return runErr
				}
				if !res.Success {
					return fmt.Errorf("scrape failed: %s", res.Error)
				}
				_, err := fmt.Fprintf(out, "added %d, total %d\n", res.AddedCount, res.TotalCount)
				return err
			})
		},
	}
}
