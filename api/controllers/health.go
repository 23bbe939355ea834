package controllers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/mediagateway/api/responses"
	"github.com/angelmondragon/mediagateway/pkg/config"
	"github.com/angelmondragon/mediagateway/pkg/logger"
)

const readinessTimeout = 3 * time.Second

// Pinger is a dependency checked by the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadinessCheck names one dependency of the readiness probe.
type ReadinessCheck struct {
	Name   string
	Pinger Pinger
}

type readinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-MediaGateway-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every configured dependency concurrently and reports 503
// when any of them fails.
func HealthReady(cfg *config.Config, logg *logger.Logger, checks ...ReadinessCheck) http.HandlerFunc {
	sort.SliceStable(checks, func(i, j int) bool { return checks[i].Name < checks[j].Name })
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-MediaGateway-Env", cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		results := make([]string, len(checks))
		var g errgroup.Group
		for i, check := range checks {
			g.Go(func() error {
				if err := check.Pinger.Ping(ctx); err != nil {
					logg.Warn(logg.WithFields(ctx, map[string]any{"check": check.Name, "error": err.Error()}), "health.ready.failed")
					results[i] = "unavailable"
					return err
				}
				results[i] = "ok"
				return nil
			})
		}
		failed := g.Wait() != nil

		resp := readinessResponse{Status: "ready", Checks: make(map[string]string, len(checks))}
		for i, check := range checks {
			resp.Checks[check.Name] = results[i]
		}
		if failed {
			resp.Status = "unavailable"
			responses.WriteSuccessStatus(w, http.StatusServiceUnavailable, resp)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}
