package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/angelmondragon/mediagateway/pkg/browser"
)

// Fetcher retrieves a listing page body.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) ([]byte, error)
}

// StatusError reports a non-success listing response.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.Status)
}

// CollyFetcher fetches pages with a colly collector dressed as a desktop browser.
type CollyFetcher struct {
	timeout time.Duration
	referer string
}

func NewCollyFetcher(timeout time.Duration, referer string) *CollyFetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &CollyFetcher{timeout: timeout, referer: referer}
}

func (f *CollyFetcher) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	referer := f.referer
	if referer == "" {
		referer = browser.OriginRoot(pageURL)
	}

	c := colly.NewCollector(
		colly.UserAgent(browser.UserAgent),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(f.timeout)

	var (
		body     []byte
		fetchErr error
	)
	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		for k, vs := range browser.PageHeaders(referer) {
			r.Headers.Set(k, vs[0])
		}
	})
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			fetchErr = &StatusError{URL: pageURL, Status: r.StatusCode}
			return
		}
		fetchErr = err
	})

	if err := c.Visit(pageURL); err != nil && fetchErr == nil {
		fetchErr = err
	}
	c.Wait()

	if fetchErr != nil {
		return nil, fetchErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return body, nil
}
