package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/angelmondragon/mediagateway/pkg/browser"
	"github.com/angelmondragon/mediagateway/pkg/config"
	pkgerrors "github.com/angelmondragon/mediagateway/pkg/errors"
	"github.com/angelmondragon/mediagateway/pkg/logger"
	"github.com/angelmondragon/mediagateway/pkg/metrics"
)

const maxPageBytes = 5 << 20

var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,127}$`)

// RelayedHeaders are copied from the media origin to the caller.
var RelayedHeaders = []string{
	"Content-Type",
	"Content-Length",
	"Content-Range",
	"Accept-Ranges",
	"ETag",
	"Last-Modified",
	"Cache-Control",
}

type Params struct {
	Config       config.RelayConfig
	PageClient   *http.Client
	StreamClient *http.Client
	Strategies   []Strategy
	Filters      []Filter
	Metrics      *metrics.RelayMetrics
	Logger       *logger.Logger
}

// Service resolves external identifiers to media URLs and relays the media
// bytes with browser-like headers.
type Service struct {
	sourceURL    string
	pageClient   *http.Client
	streamClient *http.Client
	strategies   []Strategy
	filters      []Filter
	metrics      *metrics.RelayMetrics
	logg         *logger.Logger
}

func NewService(p Params) *Service {
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	if p.PageClient == nil {
		timeout := p.Config.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		p.PageClient = browser.NewPageClient(timeout)
	}
	if p.StreamClient == nil {
		headerTimeout := p.Config.HeaderTimeout
		if headerTimeout <= 0 {
			headerTimeout = 20 * time.Second
		}
		p.StreamClient = browser.NewStreamClient(headerTimeout)
	}
	if len(p.Strategies) == 0 {
		p.Strategies = DefaultStrategies()
	}
	if len(p.Filters) == 0 {
		p.Filters = DefaultFilters()
	}
	return &Service{
		sourceURL:    p.Config.SourceURL,
		pageClient:   p.PageClient,
		streamClient: p.StreamClient,
		strategies:   p.Strategies,
		filters:      p.Filters,
		metrics:      p.Metrics,
		logg:         p.Logger,
	}
}

func (s *Service) Configured() bool {
	return s != nil && s.sourceURL != ""
}

// SourceURL builds the source page URL for id.
func (s *Service) SourceURL(id string) (string, error) {
	if !s.Configured() {
		return "", pkgerrors.New(pkgerrors.CodeConfiguration, "stream relay source is not configured")
	}
	if !idPattern.MatchString(id) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid id").
			WithDetails(map[string]any{"id": "must be 1-128 letters, digits, '-' or '_'"})
	}
	return strings.ReplaceAll(s.sourceURL, config.IDPlaceholder, id), nil
}

// Resolution describes how an id was resolved.
type Resolution struct {
	ID         string `json:"id" yaml:"id"`
	SourceURL  string `json:"sourceUrl" yaml:"sourceUrl"`
	MediaURL   string `json:"mediaUrl" yaml:"mediaUrl"`
	Strategy   string `json:"strategy" yaml:"strategy"`
	Candidates int    `json:"candidates" yaml:"candidates"`
}

// Resolve fetches the source page for id and picks one media URL from it.
func (s *Service) Resolve(ctx context.Context, id string) (Resolution, error) {
	sourceURL, err := s.SourceURL(id)
	if err != nil {
		return Resolution{}, err
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"relay_id": id, "source_url": sourceURL})

	body, err := s.fetchPage(ctx, sourceURL)
	if err != nil {
		s.metrics.IncResolution("page_error")
		return Resolution{}, err
	}

	for _, strategy := range s.strategies {
		candidates := strategy.Candidates(body)
		if len(candidates) == 0 {
			continue
		}
		mediaURL, ok := Select(candidates, s.filters)
		if !ok {
			continue
		}
		s.metrics.IncResolution(strategy.Name())
		s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
			"strategy":   strategy.Name(),
			"candidates": len(candidates),
			"media_url":  mediaURL,
		}), "relay.resolved")
		return Resolution{
			ID:         id,
			SourceURL:  sourceURL,
			MediaURL:   mediaURL,
			Strategy:   strategy.Name(),
			Candidates: len(candidates),
		}, nil
	}

	s.metrics.IncResolution("not_found")
	return Resolution{}, pkgerrors.New(pkgerrors.CodeNotFound, "no playable media found for id").
		WithDetails(map[string]any{"id": id})
}

func (s *Service) fetchPage(ctx context.Context, sourceURL string) ([]byte, error) {
	req, err := browser.NewRequest(ctx, sourceURL, browser.PageHeaders(browser.OriginRoot(sourceURL)))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build source page request")
	}
	resp, err := s.pageClient.Do(req)
	if err != nil {
		return nil, upstreamError(ctx, err, "source page fetch failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, pkgerrors.New(pkgerrors.CodeUpstream, "source page fetch failed").
			WithDetails(map[string]any{"status": resp.StatusCode})
	}
	body, err := browser.ReadPage(resp.Body, maxPageBytes)
	if err != nil {
		return nil, upstreamError(ctx, err, "source page read failed")
	}
	return body, nil
}

// Stream is an open upstream media response. Callers must close Body.
type Stream struct {
	Resolution Resolution
	Status     int
	Header     http.Header
	Body       io.ReadCloser
}

// Open resolves id and starts the media request. rangeHeader is forwarded
// verbatim. The upstream request is bound to ctx, so cancelling ctx (for
// example when the client disconnects) tears down the upstream connection.
func (s *Service) Open(ctx context.Context, id, rangeHeader string) (*Stream, error) {
	res, err := s.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	headers := browser.MediaHeaders(res.SourceURL)
	if rangeHeader != "" {
		headers.Set("Range", rangeHeader)
	}
	req, err := browser.NewRequest(ctx, res.MediaURL, headers)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "invalid media url")
	}
	resp, err := s.streamClient.Do(req)
	if err != nil {
		return nil, upstreamError(ctx, err, "media fetch failed")
	}
	s.metrics.IncUpstreamStatus(resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, pkgerrors.New(pkgerrors.CodeUpstream, "media origin rejected the request").
			WithDetails(map[string]any{"status": resp.StatusCode}).
			WithHTTPStatus(resp.StatusCode)
	}

	header := http.Header{}
	for _, name := range RelayedHeaders {
		if v := resp.Header.Get(name); v != "" {
			header.Set(name, v)
		}
	}
	return &Stream{Resolution: res, Status: resp.StatusCode, Header: header, Body: resp.Body}, nil
}

// Pipe copies the stream to w, flushing after every chunk so playback can
// start before the body completes. It returns the number of bytes written.
func (s *Service) Pipe(w io.Writer, stream *Stream) (int64, error) {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 32<<10)
	var written int64
	for {
		n, readErr := stream.Body.Read(buf)
		if n > 0 {
			m, writeErr := w.Write(buf[:n])
			written += int64(m)
			s.metrics.AddBytes(int64(m))
			if writeErr != nil {
				return written, writeErr
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if errors.Is(readErr, io.EOF) {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}

func upstreamError(ctx context.Context, err error, msg string) error {
	if ctxErr := ctx.Err(); errors.Is(ctxErr, context.Canceled) {
		return ctxErr
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return pkgerrors.Wrap(pkgerrors.CodeUpstreamTimeout, err, fmt.Sprintf("%s: timed out", msg))
	}
	return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, msg)
}
