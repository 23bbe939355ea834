package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/mediagateway/api/controllers"
	"github.com/angelmondragon/mediagateway/api/middleware"
	"github.com/angelmondragon/mediagateway/internal/access"
	"github.com/angelmondragon/mediagateway/internal/catalog"
	"github.com/angelmondragon/mediagateway/internal/relay"
	"github.com/angelmondragon/mediagateway/internal/storage"
	"github.com/angelmondragon/mediagateway/pkg/config"
	"github.com/angelmondragon/mediagateway/pkg/logger"
	"github.com/angelmondragon/mediagateway/pkg/metrics"
	"github.com/angelmondragon/mediagateway/pkg/redis"
)

// Dependencies are the services behind the HTTP surface. Nil optional
// members disable what they back: a nil Redis turns off /auth rate limiting,
// a nil Scraper makes /admin/scrape report CONFIGURATION_ERROR.
type Dependencies struct {
	Gate     *access.Gate
	Storage  *storage.Gateway
	Catalog  catalog.Service
	Scraper  controllers.ScrapeTrigger
	Relay    *relay.Service
	Redis    *redis.Client
	Metrics  *metrics.HTTPMetrics
	Gatherer prometheus.Gatherer
	Ready    []controllers.ReadinessCheck
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.Metrics),
		middleware.CORS(deps.Gate.Header()),
		middleware.Preflight,
	)

	authThrottle := middleware.ThrottlePolicy{
		Surface:    "auth",
		Window:     cfg.Auth.RateLimitWindow,
		PerIP:      cfg.Auth.RateLimitIPLimit,
		TrustProxy: cfg.Auth.TrustProxyHeaders,
	}
	var limiter middleware.Limiter
	if deps.Redis != nil {
		limiter = deps.Redis
	}
	requireSecret := middleware.RequireSecret(deps.Gate, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Ready...))
	})
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/sync", controllers.SyncLoad(deps.Catalog, logg))
	r.With(requireSecret).Post("/sync", controllers.SyncSave(deps.Catalog, logg))

	r.With(requireSecret).Put("/upload", controllers.Upload(deps.Storage, cfg.Storage.MaxUploadBytes(), logg))
	r.Route("/storage", func(r chi.Router) {
		r.Use(requireSecret)
		r.Get("/list", controllers.StorageList(deps.Storage, logg))
		r.Delete("/delete", controllers.StorageDelete(deps.Storage, logg))
	})
	r.Get(storage.FileRoutePrefix+"*", controllers.FileServe(deps.Storage, logg))
	r.Head(storage.FileRoutePrefix+"*", controllers.FileServe(deps.Storage, logg))

	r.With(requireSecret).Post("/admin/scrape", controllers.AdminScrape(deps.Scraper, logg))

	r.Get("/proxy/stream", controllers.ProxyStream(deps.Relay, logg))
	r.Head("/proxy/stream", controllers.ProxyStream(deps.Relay, logg))

	r.With(middleware.Throttle(authThrottle, limiter, logg)).Post("/auth", controllers.Auth(deps.Gate, logg))

	return r
}
