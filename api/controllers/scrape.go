package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/mediagateway/api/responses"
	"github.com/angelmondragon/mediagateway/internal/scraper"
	pkgerrors "github.com/angelmondragon/mediagateway/pkg/errors"
	"github.com/angelmondragon/mediagateway/pkg/logger"
)

// ScrapeTrigger starts (or joins) a scrape run.
type ScrapeTrigger interface {
	Trigger(ctx context.Context) (scraper.Result, error)
}

// AdminScrape runs a scrape and returns its result. A failed run still
// carries the result body with success=false.
func AdminScrape(svc ScrapeTrigger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeConfiguration, "scraper is not configured"))
			return
		}
		res, err := svc.Trigger(r.Context())
		if err != nil {
			status := http.StatusInternalServerError
			if typed := pkgerrors.As(err); typed != nil {
				status = typed.HTTPStatus()
			}
			logg.Error(r.Context(), "scrape.failed", err)
			responses.WriteSuccessStatus(w, status, res)
			return
		}
		responses.WriteSuccess(w, res)
	}
}
