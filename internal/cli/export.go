package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newExportCmd(open Opener) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print the stored catalog document",
		Long: `Print the stored catalog document. An empty store prints {"empty": true}.

Examples:
  catalogctl export                 JSON to stdout
  catalogctl export --format yaml   YAML to stdout`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := validFormat(format)
			if err != nil {
				return err
			}
			return withRuntime(cmd, open, func(ctx context.Context, rt *Runtime) error {
				raw, found, err := rt.Catalog.Load(ctx)
				if err != nil {
					return err
				}
				var doc any = map[string]bool{"empty": true}
				if found {
					if err := json.Unmarshal(raw, &doc); err != nil {
						return fmt.Errorf("stored catalog is not valid JSON: %w", err)
					}
				}
				return encode(cmd.OutOrStdout(), f, doc)
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", formatJSON, "Output format: json or yaml")
	return cmd
}
