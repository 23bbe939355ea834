package controllers

import (
	"errors"
	"io"
	"net/http"

	"github.com/angelmondragon/mediagateway/api/responses"
	"github.com/angelmondragon/mediagateway/internal/catalog"
	pkgerrors "github.com/angelmondragon/mediagateway/pkg/errors"
	"github.com/angelmondragon/mediagateway/pkg/logger"
)

// MaxDocumentBytes caps the catalog document accepted by POST /sync.
const MaxDocumentBytes = 16 << 20

type emptyDocument struct {
	Empty bool `json:"empty"`
}

// SyncLoad returns the stored catalog, or {"empty":true} before the first
// save.
func SyncLoad(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, found, err := svc.Load(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		if !found {
			responses.WriteSuccess(w, emptyDocument{Empty: true})
			return
		}
		responses.WriteSuccess(w, raw)
	}
}

// SyncSave overwrites the whole catalog with the request body.
func SyncSave(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxDocumentBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "catalog document too large"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "reading request body failed"))
			return
		}
		if err := svc.Save(r.Context(), body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteAck(w)
	}
}
