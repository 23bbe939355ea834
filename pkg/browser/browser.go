// Package browser builds outbound requests that look like they come from a
// desktop browser. Several media origins reject requests without a familiar
// user agent or with a foreign Referer.
package browser

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	UserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"
	AcceptHTML     = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"
	AcceptMedia    = "audio/webm,audio/ogg,audio/wav,audio/*;q=0.9,application/ogg;q=0.7,video/*;q=0.6,*/*;q=0.5"
	AcceptLanguage = "en-US,en;q=0.9"
)

// PageHeaders returns the headers sent when fetching an HTML page.
func PageHeaders(referer string) http.Header {
	h := http.Header{}
	h.Set("User-Agent", UserAgent)
	h.Set("Accept", AcceptHTML)
	h.Set("Accept-Language", AcceptLanguage)
	if referer != "" {
		h.Set("Referer", referer)
	}
	return h
}

// MediaHeaders returns the headers sent when fetching media bytes.
func MediaHeaders(referer string) http.Header {
	h := http.Header{}
	h.Set("User-Agent", UserAgent)
	h.Set("Accept", AcceptMedia)
	h.Set("Accept-Language", AcceptLanguage)
	// Identity keeps Content-Length and Content-Range meaningful for the caller.
	h.Set("Accept-Encoding", "identity")
	if referer != "" {
		h.Set("Referer", referer)
	}
	return h
}

// OriginRoot returns scheme://host/ for rawURL, or "" when it cannot be parsed.
func OriginRoot(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host + "/"
}

// NewPageClient returns a client for short page fetches bounded end to end.
func NewPageClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// NewStreamClient returns a client for long-lived media streams. Only the wait
// for response headers is bounded; the body may stream indefinitely and is
// cancelled through the request context instead.
func NewStreamClient(headerTimeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = headerTimeout
	transport.DisableCompression = true
	return &http.Client{Transport: transport}
}

// NewRequest builds a GET carrying headers.
func NewRequest(ctx context.Context, rawURL string, headers http.Header) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}

// ReadPage reads at most limit bytes of a page body.
func ReadPage(body io.Reader, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, limit))
}
