package controllers

import (
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/angelmondragon/mediagateway/api/responses"
	"github.com/angelmondragon/mediagateway/api/validators"
	"github.com/angelmondragon/mediagateway/internal/storage"
	pkgerrors "github.com/angelmondragon/mediagateway/pkg/errors"
	"github.com/angelmondragon/mediagateway/pkg/logger"
)

type uploadResponse struct {
	URL string `json:"url"`
}

type listResponse struct {
	Files []storage.File `json:"files"`
}

// Upload stores the raw request body under ?filename=.
func Upload(gw *storage.Gateway, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := validators.Query(r, "filename", validators.ObjectKey)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if maxBytes > 0 && r.ContentLength > maxBytes {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "upload exceeds the size limit").
				WithDetails(map[string]any{"maxBytes": maxBytes}))
			return
		}
		body := io.Reader(r.Body)
		if maxBytes > 0 {
			body = http.MaxBytesReader(w, r.Body, maxBytes)
		}
		publicURL, err := gw.Put(r.Context(), key, body, r.ContentLength, r.Header.Get("Content-Type"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, uploadResponse{URL: publicURL})
	}
}

func StorageList(gw *storage.Gateway, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.QueryInt(r, "limit", 0, 1, 10000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		files, err := gw.List(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listResponse{Files: files})
	}
}

// StorageDelete removes ?key=. Deleting a missing object still succeeds.
func StorageDelete(gw *storage.Gateway, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := validators.Query(r, "key", validators.ObjectKey)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := gw.Delete(r.Context(), key); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteAck(w)
	}
}

// FileServe serves GET and HEAD for /file/{key...} with byte range support.
func FileServe(gw *storage.Gateway, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := fileKey(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid key encoding"))
			return
		}

		read := gw.Get
		if r.Method == http.MethodHead {
			read = gw.Head
		}
		obj, err := read(r.Context(), key, r.Header.Get("Range"))
		if err != nil {
			if obj != nil {
				copyHeader(w.Header(), obj.Header)
				w.Header().Del("Content-Length")
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if obj.Body != nil {
			defer obj.Body.Close()
		}

		copyHeader(w.Header(), obj.Header)
		w.WriteHeader(obj.Status)
		if obj.Body == nil || r.Method == http.MethodHead {
			return
		}
		if _, err := io.Copy(w, obj.Body); err != nil {
			// Headers are gone; the client sees a truncated body.
			logg.Warn(logg.WithFields(r.Context(), map[string]any{"key": key, "error": err.Error()}), "file.stream.interrupted")
		}
	}
}

// fileKey decodes the key from the escaped request path exactly once, so the
// URL built by Gateway.PublicURL maps back to the same key.
func fileKey(r *http.Request) (string, error) {
	return url.PathUnescape(strings.TrimPrefix(r.URL.EscapedPath(), storage.FileRoutePrefix))
}

func copyHeader(dst, src http.Header) {
	for k, vs := range src {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}
