package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newResolveCmd(open Opener) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "resolve <id>",
		Short: "Print the media URL the relay would stream for <id>",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := validFormat(format)
			if err != nil {
				return err
			}
			return withRuntime(cmd, open, func(ctx context.Context, rt *Runtime) error {
				if rt.Relay == nil {
					return fmt.Errorf("relay is not configured")
				}
				res, err := rt.Relay.Resolve(ctx, args[0])
				if err != nil {
					return err
				}
				return encode(cmd.OutOrStdout(), f, res)
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", formatYAML, "Output format: json or yaml")
	return cmd
}
