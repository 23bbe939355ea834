package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"

	"github.com/angelmondragon/mediagateway/internal/access"
)

var exposedHeaders = []string{
	"Content-Length",
	"Content-Range",
	"Accept-Ranges",
	"ETag",
	"Last-Modified",
	"X-Request-Id",
}

// CORS applies the gateway's permissive cross-origin policy. Requests without
// an Origin, which the cors handler skips, still get the static allow-origin
// and expose headers. Preflight requests pass through to Preflight, which
// answers them.
func CORS(adminHeader string) func(http.Handler) http.Handler {
	if adminHeader == "" {
		adminHeader = access.DefaultHeader
	}
	policy := cors.New(cors.Options{
		AllowedOrigins:     []string{"*"},
		AllowedMethods:     []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:     []string{"Accept", "Authorization", "Content-Type", "Range", "If-Range", "X-Requested-With", adminHeader},
		ExposedHeaders:     exposedHeaders,
		AllowCredentials:   false,
		MaxAge:             86400,
		OptionsPassthrough: true,
	})
	exposed := strings.Join(exposedHeaders, ", ")
	return func(next http.Handler) http.Handler {
		withPolicy := policy.Handler(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Origin") == "" {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", "*")
				h.Set("Access-Control-Expose-Headers", exposed)
			}
			withPolicy.ServeHTTP(w, r)
		})
	}
}

// Preflight answers every OPTIONS request with 204 and no body, including
// ones without an Origin that the CORS handler leaves untouched.
func Preflight(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			h := w.Header()
			if h.Get("Access-Control-Allow-Methods") == "" {
				h.Set("Access-Control-Allow-Origin", "*")
				h.Set("Access-Control-Allow-Methods", "GET, HEAD, POST, PUT, DELETE, OPTIONS")
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
