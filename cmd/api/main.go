package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/mediagateway/api/controllers"
	"github.com/angelmondragon/mediagateway/api/routes"
	"github.com/angelmondragon/mediagateway/internal/access"
	"github.com/angelmondragon/mediagateway/internal/bootstrap"
	"github.com/angelmondragon/mediagateway/pkg/config"
	"github.com/angelmondragon/mediagateway/pkg/logger"
	"github.com/angelmondragon/mediagateway/pkg/metrics"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = bootstrap.NewLogger("api", cfg.App)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := bootstrap.Open(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap backends", err)
		os.Exit(1)
	}
	defer func() {
		if err := res.Close(); err != nil {
			logg.Error(context.Background(), "error closing backends", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	relayMetrics := metrics.NewRelayMetrics(registry)

	catalogSvc := res.Catalog(cfg, logg)
	storageGw := res.Storage(cfg, logg)
	scraperSvc, err := bootstrap.Scraper(cfg, catalogSvc, relayMetrics, logg)
	if err != nil {
		logg.Error(ctx, "failed to create scraper", err)
		os.Exit(1)
	}

	deps := routes.Dependencies{
		Gate:     access.NewGate(cfg.Auth.AdminSecret, cfg.Auth.Header),
		Storage:  storageGw,
		Catalog:  catalogSvc,
		Scraper:  scraperSvc,
		Relay:    bootstrap.Relay(cfg, relayMetrics, logg),
		Redis:    res.Redis,
		Metrics:  metrics.NewHTTPMetrics(registry),
		Gatherer: registry,
	}
	if res.Documents != nil {
		deps.Ready = append(deps.Ready, controllers.ReadinessCheck{Name: "documents", Pinger: catalogSvc})
	}
	if res.Blobs != nil {
		deps.Ready = append(deps.Ready, controllers.ReadinessCheck{Name: "storage", Pinger: storageGw})
	}
	if res.Redis != nil {
		deps.Ready = append(deps.Ready, controllers.ReadinessCheck{Name: "redis", Pinger: res.Redis})
	}
	if deps.Gate.Open() {
		logg.Warn(ctx, "admin secret not set, mutating endpoints are open")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":       cfg.App.Env,
		"addr":      addr,
		"storage":   cfg.Storage.Backend,
		"documents": cfg.Documents.Backend,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "graceful shutdown failed", err)
		}
	}
}
