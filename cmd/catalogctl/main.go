package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/mediagateway/internal/bootstrap"
	"github.com/angelmondragon/mediagateway/internal/cli"
	"github.com/angelmondragon/mediagateway/pkg/config"
	"github.com/angelmondragon/mediagateway/pkg/logger"
	"github.com/angelmondragon/mediagateway/pkg/metrics"
)

func main() {
	_ = godotenv.Load()

	root := cli.NewRootCmd(openRuntime)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func openRuntime(ctx context.Context) (*cli.Runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logg := logger.New(logger.Options{
		ServiceName: "catalogctl",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      "console",
		Output:      os.Stderr,
	})

	res, err := bootstrap.Open(ctx, cfg, logg)
	if err != nil {
		return nil, err
	}
	relayMetrics := metrics.NewRelayMetrics(prometheus.NewRegistry())
	catalogSvc := res.Catalog(cfg, logg)
	scraperSvc, err := bootstrap.Scraper(cfg, catalogSvc, relayMetrics, logg)
	if err != nil {
		return nil, fmt.Errorf("creating scraper: %w (closing: %v)", err, res.Close())
	}

	return &cli.Runtime{
		Catalog: catalogSvc,
		Scraper: scraperSvc,
		Relay:   bootstrap.Relay(cfg, relayMetrics, logg),
		Close:   res.Close,
	}, nil
}
