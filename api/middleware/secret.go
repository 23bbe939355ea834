package middleware

import (
	"net/http"

	"github.com/angelmondragon/mediagateway/api/responses"
	"github.com/angelmondragon/mediagateway/internal/access"
	pkgerrors "github.com/angelmondragon/mediagateway/pkg/errors"
	"github.com/angelmondragon/mediagateway/pkg/logger"
)

// RequireSecret rejects requests that do not carry the admin secret. With no
// secret configured the gate is open and every request passes.
func RequireSecret(gate *access.Gate, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if gate.Open() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !gate.Authorize(r) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing or invalid admin key"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
