package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newImportCmd(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the stored catalog with a JSON or YAML file",
		Long: `Replace the whole stored catalog with the contents of <file>.

Files ending in .yaml or .yml are converted to JSON first. The write is a
whole-document overwrite, the same as POST /sync.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readDocument(args[0])
			if err != nil {
				return err
			}
			return withRuntime(cmd, open, func(ctx context.Context, rt *Runtime) error {
				if err := rt.Catalog.Save(ctx, raw); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "imported %d bytes from %s\n", len(raw), args[0])
				return err
			})
		},
	}
	return cmd
}

func readDocument(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc map[string]any
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		if doc == nil {
			return nil, fmt.Errorf("%s is empty", path)
		}
		return json.Marshal(doc)
	}
	return raw, nil
}
