package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"github.com/angelmondragon/mediagateway/internal/catalog"
	"github.com/angelmondragon/mediagateway/internal/relay"
	"github.com/angelmondragon/mediagateway/internal/scraper"
	"github.com/angelmondragon/mediagateway/internal/storage"
	"github.com/angelmondragon/mediagateway/pkg/config"
	"github.com/angelmondragon/mediagateway/pkg/db"
	"github.com/angelmondragon/mediagateway/pkg/documents"
	"github.com/angelmondragon/mediagateway/pkg/logger"
	"github.com/angelmondragon/mediagateway/pkg/metrics"
	"github.com/angelmondragon/mediagateway/pkg/migrate"
	"github.com/angelmondragon/mediagateway/pkg/redis"
	blobstore "github.com/angelmondragon/mediagateway/pkg/storage"
	"github.com/angelmondragon/mediagateway/pkg/storage/gcs"
	"github.com/angelmondragon/mediagateway/pkg/storage/s3"
)

// NewLogger builds the service logger from the app config.
func NewLogger(service string, app config.AppConfig) *logger.Logger {
	return logger.New(logger.Options{
		ServiceName: service,
		Level:       logger.ParseLevel(app.LogLevel),
		WarnStack:   app.LogWarnStack,
		Format:      app.LogFormat,
	})
}

// Resources are the backing clients selected by configuration. Nil members
// are backends that are switched off.
type Resources struct {
	Redis     *redis.Client
	DB        *db.Client
	Blobs     blobstore.Store
	Documents documents.Store

	closers []func() error
}

// Open dials every configured backend. On failure the clients opened so far
// are closed before returning.
func Open(ctx context.Context, cfg *config.Config, logg *logger.Logger) (res *Resources, err error) {
	res = &Resources{}
	defer func() {
		if err != nil {
			err = multierr.Append(err, res.Close())
			res = nil
		}
	}()

	docsBackend := strings.ToLower(cfg.Documents.Backend)
	if docsBackend == config.DocumentsBackendRedis && !cfg.Redis.Enabled() {
		return res, fmt.Errorf("documents backend redis requires %s", config.EnvRedisURL)
	}
	if cfg.Redis.Enabled() {
		client, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return res, fmt.Errorf("bootstrapping redis: %w", err)
		}
		res.Redis = client
		res.closers = append(res.closers, client.Close)
	}

	switch docsBackend {
	case config.DocumentsBackendMemory:
		res.Documents = documents.NewMemoryStore()
	case config.DocumentsBackendRedis:
		res.Documents = documents.NewRedisStore(res.Redis)
	case config.DocumentsBackendSQL:
		client, err := db.New(ctx, cfg.DB, logg)
		if err != nil {
			return res, fmt.Errorf("bootstrapping database: %w", err)
		}
		res.DB = client
		res.closers = append(res.closers, client.Close)
		if err := migrate.MaybeRun(ctx, cfg, logg, client); err != nil {
			return res, fmt.Errorf("running migrations: %w", err)
		}
		res.Documents = documents.NewSQLStore(client.DB())
	}

	switch strings.ToLower(cfg.Storage.Backend) {
	case config.StorageBackendMemory:
		res.Blobs = blobstore.NewMemoryStore()
	case config.StorageBackendGCS:
		client, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
		if err != nil {
			return res, fmt.Errorf("bootstrapping gcs: %w", err)
		}
		res.Blobs = client
		res.closers = append(res.closers, client.Close)
	case config.StorageBackendS3:
		store, err := s3.NewStore(ctx, cfg.S3, logg)
		if err != nil {
			return res, fmt.Errorf("bootstrapping s3: %w", err)
		}
		res.Blobs = store
	}

	return res, nil
}

// Close releases every client in reverse order of opening.
func (r *Resources) Close() error {
	if r == nil {
		return nil
	}
	var err error
	for i := len(r.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, r.closers[i]())
	}
	r.closers = nil
	return err
}

// Catalog returns the document sync service over the configured store.
func (r *Resources) Catalog(cfg *config.Config, logg *logger.Logger) catalog.Service {
	return catalog.NewService(r.Documents, cfg.Documents.Key, logg)
}

// Storage returns the byte-range gateway over the configured blob store.
func (r *Resources) Storage(cfg *config.Config, logg *logger.Logger) *storage.Gateway {
	return storage.NewGateway(r.Blobs, storage.Options{
		PublicBaseURL: cfg.Storage.PublicBaseURL,
		ListLimit:     cfg.Storage.ListLimit,
	}, logg)
}

// Scraper builds the discovery scraper writing into svc.
func Scraper(cfg *config.Config, svc catalog.Service, m *metrics.RelayMetrics, logg *logger.Logger) (*scraper.Service, error) {
	return scraper.NewService(scraper.Params{
		Config:  cfg.Scraper,
		Catalog: svc,
		Metrics: m,
		Logger:  logg,
	})
}

// Relay builds the stream relay for cfg.Relay.
func Relay(cfg *config.Config, m *metrics.RelayMetrics, logg *logger.Logger) *relay.Service {
	return relay.NewService(relay.Params{
		Config:  cfg.Relay,
		Metrics: m,
		Logger:  logg,
	})
}
