package middleware

import (
	"net/http"
	"time"

	"github.com/angelmondragon/mediagateway/pkg/logger"
)

// Logging brackets each request with request.start and request.complete.
// Ranged reads also log the requested range, which is what a seeking player
// sends on every scrub.
func Logging(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logg == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fields := map[string]any{
				"method": r.Method,
				"path":   r.URL.Path,
			}
			if rng := r.Header.Get("Range"); rng != "" {
				fields["range"] = rng
			}
			ctx := logg.WithFields(r.Context(), fields)
			logg.Debug(ctx, "request.start")

			rec := wrap(w)
			start := time.Now()
			next.ServeHTTP(rec, r.WithContext(ctx))

			ctx = logg.WithFields(ctx, map[string]any{
				"status":      rec.statusCode(),
				"bytes":       rec.bytes,
				"duration_ms": time.Since(start).Milliseconds(),
			})
			if rec.statusCode() >= http.StatusInternalServerError {
				logg.Warn(ctx, "request.complete")
				return
			}
			logg.Info(ctx, "request.complete")
		})
	}
}
