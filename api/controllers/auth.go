package controllers

import (
	"net/http"

	"github.com/angelmondragon/mediagateway/api/responses"
	"github.com/angelmondragon/mediagateway/api/validators"
	"github.com/angelmondragon/mediagateway/internal/access"
	"github.com/angelmondragon/mediagateway/pkg/logger"
)

type authRequest struct {
	Key string `json:"key" validate:"max=1024"`
}

type authResponse struct {
	Valid bool `json:"valid"`
}

// Auth reports whether the submitted key matches the admin secret. With no
// secret configured every key is valid.
func Auth(gate *access.Gate, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload authRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		valid := gate.Validate(payload.Key)
		if !valid {
			logg.Warn(r.Context(), "auth.key.rejected")
		}
		responses.WriteSuccess(w, authResponse{Valid: valid})
	}
}
