package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/angelmondragon/mediagateway/internal/catalog"
	"github.com/angelmondragon/mediagateway/internal/relay"
	"github.com/angelmondragon/mediagateway/internal/scraper"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

type ScrapeRunner interface {
	Run(ctx context.Context) (scraper.Result, error)
}

type Resolver interface {
	Resolve(ctx context.Context, id string) (relay.Resolution, error)
}

// Runtime carries the services a command operates on. Close may be nil.
type Runtime struct {
	Catalog catalog.Service
	Scraper ScrapeRunner
	Relay   Resolver
	Close   func() error
}

// Opener builds a Runtime for one command invocation.
type Opener func(ctx context.Context) (*Runtime, error)

func NewRootCmd(open Opener) *cobra.Command {
	root := &cobra.Command{
		Use:   "catalogctl",
		Short: "Operate on the media gateway catalog",
		Long: `catalogctl reads and writes the synced catalog document, runs the
discovery scraper once, and resolves relay ids without streaming.

Backends are selected from the same MEDIAGW_* environment as the api.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newExportCmd(open),
		newImportCmd(open),
		newScrapeCmd(open),
		newResolveCmd(open),
	)
	return root
}

// withRuntime opens a runtime for the command and always closes it.
func withRuntime(cmd *cobra.Command, open Opener, fn func(ctx context.Context, rt *Runtime) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := open(ctx)
	if err != nil {
		return err
	}
	if rt.Close != nil {
		defer func() {
			err = multierr.Append(err, rt.Close())
		}()
	}
	return fn(ctx, rt)
}

func validFormat(format string) (string, error) {
	switch f := strings.ToLower(format); f {
	case formatJSON, formatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format %q (want json or yaml)", format)
	}
}

func encode(w io.Writer, format string, v any) error {
	if format == formatYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
