package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/angelmondragon/mediagateway/api/responses"
	"github.com/angelmondragon/mediagateway/api/validators"
	"github.com/angelmondragon/mediagateway/internal/relay"
	"github.com/angelmondragon/mediagateway/pkg/logger"
)

// ProxyStream relays the media behind ?id= with the caller's Range header.
func ProxyStream(svc *relay.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.Query(r, "id", validators.TrackID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		stream, err := svc.Open(r.Context(), id, r.Header.Get("Range"))
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer stream.Body.Close()

		copyHeader(w.Header(), stream.Header)
		w.WriteHeader(stream.Status)
		if r.Method == http.MethodHead {
			return
		}
		n, err := svc.Pipe(w, stream)
		ctx := logg.WithFields(r.Context(), map[string]any{"relay_id": id, "bytes": n})
		if err != nil && r.Context().Err() == nil {
			logg.Warn(logg.WithField(ctx, "error", err.Error()), "relay.stream.interrupted")
			return
		}
		logg.Debug(ctx, "relay.stream.complete")
	}
}
