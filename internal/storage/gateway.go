package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	pkgerrors "github.com/angelmondragon/mediagateway/pkg/errors"
	"github.com/angelmondragon/mediagateway/pkg/logger"
	blobstore "github.com/angelmondragon/mediagateway/pkg/storage"
)

const (
	// FileRoutePrefix is where the gateway serves objects when no public base
	// URL is configured.
	FileRoutePrefix = "/file/"

	defaultContentType = "application/octet-stream"
	sniffLen           = 3072
)

// File is one entry of the storage listing.
type File struct {
	Key      string    `json:"key"`
	Size     int64     `json:"size"`
	Uploaded time.Time `json:"uploaded"`
	URL      string    `json:"url"`
}

// Object is a ready-to-write response for a file read. Body is nil for HEAD
// requests and must be closed by the caller otherwise.
type Object struct {
	Status int
	Header http.Header
	Body   io.ReadCloser
	Info   blobstore.ObjectInfo
}

type Options struct {
	PublicBaseURL string
	ListLimit     int
}

// Gateway fronts a blob store with byte-range reads and public URL synthesis.
// A nil store is allowed; every operation then fails with CONFIGURATION_ERROR.
type Gateway struct {
	store     blobstore.Store
	baseURL   string
	listLimit int
	logg      *logger.Logger
}

func NewGateway(store blobstore.Store, opts Options, logg *logger.Logger) *Gateway {
	if logg == nil {
		logg = logger.Nop()
	}
	limit := opts.ListLimit
	if limit <= 0 {
		limit = 1000
	}
	return &Gateway{
		store:     store,
		baseURL:   strings.TrimSpace(opts.PublicBaseURL),
		listLimit: limit,
		logg:      logg,
	}
}

func (g *Gateway) Configured() bool {
	return g != nil && g.store != nil
}

func (g *Gateway) requireStore() error {
	if !g.Configured() {
		return pkgerrors.New(pkgerrors.CodeConfiguration, "object storage is not configured")
	}
	return nil
}

// PublicURL returns base+key when a public base URL is configured, otherwise
// the gateway's own file route.
func (g *Gateway) PublicURL(key string) string {
	if g.baseURL != "" {
		return strings.TrimRight(g.baseURL, "/") + "/" + strings.TrimLeft(key, "/")
	}
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return FileRoutePrefix + strings.Join(segments, "/")
}

// NormalizeKey trims surrounding slashes and rejects keys that are empty or
// contain dot segments.
func NormalizeKey(key string) (string, error) {
	key = strings.Trim(strings.TrimSpace(key), "/")
	if key == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "key is required")
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "." || seg == ".." || seg == "" {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "key contains an invalid path segment").
				WithDetails(map[string]string{"key": key})
		}
	}
	return key, nil
}

// Put stores body under key and returns its public URL. When contentType is
// empty or generic the type is sniffed from the first bytes.
func (g *Gateway) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	if err := g.requireStore(); err != nil {
		return "", err
	}
	key, err := NormalizeKey(key)
	if err != nil {
		return "", err
	}

	if ct := strings.TrimSpace(contentType); ct == "" || strings.HasPrefix(ct, defaultContentType) {
		head := make([]byte, sniffLen)
		n, readErr := io.ReadFull(body, head)
		if readErr != nil && !errors.Is(readErr, io.EOF) && !errors.Is(readErr, io.ErrUnexpectedEOF) {
			return "", uploadError(readErr)
		}
		head = head[:n]
		contentType = sniffContentType(key, head)
		body = io.MultiReader(bytes.NewReader(head), body)
	}

	info, err := g.store.Put(ctx, key, body, size, contentType)
	if err != nil {
		return "", uploadError(err)
	}

	ctx = g.logg.WithFields(ctx, map[string]any{"key": key, "size": info.Size, "content_type": contentType})
	g.logg.Info(ctx, "object stored")
	return g.PublicURL(key), nil
}

func sniffContentType(key string, head []byte) string {
	mt := mimetype.Detect(head)
	if mt.Is(defaultContentType) || mt.Is("text/plain") {
		if byExt := mimetype.Lookup(extensionMIME(key)); byExt != nil {
			return byExt.String()
		}
	}
	return mt.String()
}

var audioExtensions = map[string]string{
	".mp3":  "audio/mpeg",
	".m4a":  "audio/x-m4a",
	".aac":  "audio/aac",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".mp4":  "video/mp4",
	".webm": "video/webm",
}

func extensionMIME(key string) string {
	return audioExtensions[strings.ToLower(path.Ext(key))]
}

func uploadError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return pkgerrors.New(pkgerrors.CodeValidation, "upload exceeds the maximum size").
			WithDetails(map[string]int64{"limit_bytes": maxErr.Limit})
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "storing object failed")
}

// List returns stored objects newest first, capped at limit (or the configured
// default when limit <= 0).
func (g *Gateway) List(ctx context.Context, limit int) ([]File, error) {
	if err := g.requireStore(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > g.listLimit {
		limit = g.listLimit
	}
	infos, err := g.store.List(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing objects failed")
	}

	files := make([]File, 0, len(infos))
	for _, info := range infos {
		files = append(files, File{
			Key:      info.Key,
			Size:     info.Size,
			Uploaded: info.UploadedAt,
			URL:      g.PublicURL(info.Key),
		})
	}
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].Uploaded.After(files[j].Uploaded)
	})
	return files, nil
}

// Delete removes key. Missing objects are not an error.
func (g *Gateway) Delete(ctx context.Context, key string) error {
	if err := g.requireStore(); err != nil {
		return err
	}
	key, err := NormalizeKey(key)
	if err != nil {
		return err
	}
	if err := g.store.Delete(ctx, key); err != nil && !errors.Is(err, blobstore.ErrObjectNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deleting object failed")
	}
	g.logg.Info(g.logg.WithField(ctx, "key", key), "object deleted")
	return nil
}

// Get opens key honoring rangeHeader. On RANGE_NOT_SATISFIABLE the returned
// Object is non-nil and carries the Content-Range header for the 416 reply.
func (g *Gateway) Get(ctx context.Context, key, rangeHeader string) (*Object, error) {
	return g.read(ctx, key, rangeHeader, true)
}

// Head resolves the same status and headers as Get without opening the body.
func (g *Gateway) Head(ctx context.Context, key, rangeHeader string) (*Object, error) {
	return g.read(ctx, key, rangeHeader, false)
}

func (g *Gateway) read(ctx context.Context, key, rangeHeader string, withBody bool) (*Object, error) {
	if err := g.requireStore(); err != nil {
		return nil, err
	}
	key, err := NormalizeKey(key)
	if err != nil {
		return nil, err
	}

	info, err := g.store.Stat(ctx, key)
	if err != nil {
		return nil, g.readError(err, key)
	}

	header := http.Header{}
	header.Set("Accept-Ranges", "bytes")
	header.Set("Content-Type", contentTypeOf(info))
	if info.ETag != "" {
		header.Set("ETag", quoteETag(info.ETag))
	}
	if !info.UploadedAt.IsZero() {
		header.Set("Last-Modified", info.UploadedAt.UTC().Format(http.TimeFormat))
	}

	rng, err := ParseRange(rangeHeader, info.Size)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeRangeUnsatisfied) {
			header.Set("Content-Range", UnsatisfiedContentRange(info.Size))
			return &Object{Status: http.StatusRequestedRangeNotSatisfiable, Header: header, Info: info}, err
		}
		return nil, err
	}

	obj := &Object{Status: http.StatusOK, Header: header, Info: info}
	offset, length := int64(0), int64(-1)
	if rng != nil {
		obj.Status = http.StatusPartialContent
		offset, length = rng.Start, rng.Length()
		header.Set("Content-Range", rng.ContentRange(info.Size))
		header.Set("Content-Length", strconv.FormatInt(length, 10))
	} else {
		header.Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}

	if !withBody {
		return obj, nil
	}
	body, err := g.store.Open(ctx, key, offset, length)
	if err != nil {
		return nil, g.readError(err, key)
	}
	obj.Body = body
	return obj, nil
}

func (g *Gateway) readError(err error, key string) error {
	if errors.Is(err, blobstore.ErrObjectNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "object not found").
			WithDetails(map[string]string{"key": key})
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading object failed")
}

// Ping checks the backing store for readiness probes.
func (g *Gateway) Ping(ctx context.Context) error {
	if err := g.requireStore(); err != nil {
		return err
	}
	return g.store.Ping(ctx)
}

func contentTypeOf(info blobstore.ObjectInfo) string {
	if info.ContentType != "" {
		return info.ContentType
	}
	if ct := extensionMIME(info.Key); ct != "" {
		return ct
	}
	return defaultContentType
}

func quoteETag(etag string) string {
	if strings.HasPrefix(etag, `"`) || strings.HasPrefix(etag, `W/"`) {
		return etag
	}
	return `"` + etag + `"`
}
