package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/mediagateway/internal/catalog"
	"github.com/angelmondragon/mediagateway/pkg/browser"
	"github.com/angelmondragon/mediagateway/pkg/config"
	"github.com/angelmondragon/mediagateway/pkg/documents"
)

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls int
	gate  chan struct{}
}

func (f *fakeFetcher) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.gate != nil {
		<-f.gate
	}
	body, ok := f.pages[pageURL]
	if !ok {
		return nil, &StatusError{URL: pageURL, Status: http.StatusForbidden}
	}
	return []byte(body), nil
}

func pageWith(urls ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, u := range urls {
		fmt.Fprintf(&b, `<a href="%s">x</a>`, u)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func testConfig() config.ScraperConfig {
	return config.ScraperConfig{
		ListingURL:   "https://listing.example.com/mixes?page={page}",
		Pages:        3,
		Collection:   "mixes",
		MinFresh:     5,
		MaxRetained:  200,
		Concurrency:  2,
		PlayCountMin: 1000,
		PlayCountMax: 50000,
	}
}

func newScraper(t *testing.T, cfg config.ScraperConfig, fetcher Fetcher, cat catalog.Service) *Service {
	t.Helper()
	svc, err := NewService(Params{
		Config:  cfg,
		Catalog: cat,
		Fetcher: fetcher,
		Intn:    func(n int) int { return n - 1 },
	})
	require.NoError(t, err)
	return svc
}

func collectionIDs(t *testing.T, cat catalog.Service) []string {
	t.Helper()
	doc, err := cat.LoadDocument(context.Background())
	require.NoError(t, err)
	records, err := doc.Records("mixes")
	require.NoError(t, err)
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestRunUnreachableOriginUsesFallback(t *testing.T) {
	cat := catalog.NewService(documents.NewMemoryStore(), "catalog", nil)
	require.NoError(t, cat.Save(context.Background(), []byte(`{"mixes":[{"id":"existing"},{"id":"SoundHelix-Song-2"}],"theme":"dark"}`)))

	svc := newScraper(t, testConfig(), &fakeFetcher{pages: map[string]string{}}, cat)
	res, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.GreaterOrEqual(t, res.TotalCount, 2)
	ids := collectionIDs(t, cat)
	fallback, err := LoadFallback()
	require.NoError(t, err)
	for _, r := range fallback {
		assert.Contains(t, ids, r.ID)
	}
	assert.Equal(t, len(fallback)-1, res.AddedCount)
	assert.Equal(t, "existing", ids[len(ids)-2])

	joined := strings.Join(res.Logs, "\n")
	assert.Contains(t, joined, "HTTP 403")
	assert.Contains(t, joined, "fallback")

	raw, _, err := cat.Load(context.Background())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"theme":"dark"`)
}

func TestRunSkipsFailedPages(t *testing.T) {
	cfg := testConfig()
	cfg.MinFresh = 2
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://listing.example.com/mixes?page=1": pageWith("https://cdn.example.com/one.mp3", "https://cdn.example.com/two.mp3"),
		"https://listing.example.com/mixes?page=3": pageWith("https://cdn.example.com/two.mp3", "https://cdn.example.com/three.mp3"),
	}}
	cat := catalog.NewService(documents.NewMemoryStore(), "catalog", nil)

	res, err := newScraper(t, cfg, fetcher, cat).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 3, res.AddedCount)
	assert.Equal(t, []string{"one", "two", "three"}, collectionIDs(t, cat))
	assert.Equal(t, 3, fetcher.calls)

	doc, err := cat.LoadDocument(context.Background())
	require.NoError(t, err)
	records, err := doc.Records("mixes")
	require.NoError(t, err)
	first := records[0]
	assert.Equal(t, PlaceholderDuration, first.Duration)
	assert.Equal(t, "https://picsum.photos/seed/one/400/400", first.Cover)
	assert.Equal(t, 50000, first.Plays)
	assert.Equal(t, "cdn.example.com", first.Artist)
	assert.Contains(t, first.Tags, "scraped")
}

func TestRunTwiceHasNoDuplicates(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://listing.example.com/mixes?page=1": pageWith("https://cdn.example.com/one.mp3", "https://cdn.example.com/SoundHelix-Song-1.mp3"),
	}}
	cat := catalog.NewService(documents.NewMemoryStore(), "catalog", nil)
	svc := newScraper(t, testConfig(), fetcher, cat)

	first, err := svc.Run(context.Background())
	require.NoError(t, err)
	second, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, second.AddedCount)
	assert.Equal(t, first.TotalCount, second.TotalCount)

	seen := map[string]bool{}
	for _, id := range collectionIDs(t, cat) {
		assert.Falsef(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestRunRespectsRetainedCap(t *testing.T) {
	cfg := testConfig()
	cfg.Pages = 1
	cfg.MaxRetained = 10
	cfg.MinFresh = 0
	cat := catalog.NewService(documents.NewMemoryStore(), "catalog", nil)

	for run := 0; run < 6; run++ {
		urls := make([]string, 0, 4)
		for i := 0; i < 4; i++ {
			urls = append(urls, fmt.Sprintf("https://cdn.example.com/run%d-track%d.mp3", run, i))
		}
		fetcher := &fakeFetcher{pages: map[string]string{"https://listing.example.com/mixes?page=1": pageWith(urls...)}}
		res, err := newScraper(t, cfg, fetcher, cat).Run(context.Background())
		require.NoError(t, err)
		assert.LessOrEqual(t, res.TotalCount, 10)
	}
	ids := collectionIDs(t, cat)
	assert.Len(t, ids, 10)
	assert.Equal(t, "run5-track0", ids[0])
}

func TestRunWithoutListingSourceStillSeeds(t *testing.T) {
	cfg := testConfig()
	cfg.ListingURL = ""
	cat := catalog.NewService(documents.NewMemoryStore(), "catalog", nil)

	res, err := newScraper(t, cfg, &fakeFetcher{}, cat).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.NotZero(t, res.TotalCount)
}

type failingDocs struct{ documents.Store }

func (failingDocs) Get(context.Context, string) (string, error) { return "", documents.ErrNotFound }
func (failingDocs) Set(context.Context, string, string) error   { return errors.New("disk full") }

func TestRunReportsSaveFailure(t *testing.T) {
	cat := catalog.NewService(failingDocs{}, "catalog", nil)
	res, err := newScraper(t, testConfig(), &fakeFetcher{}, cat).Run(context.Background())

	require.Error(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "saving catalog failed", res.Error)
	assert.NotEmpty(t, res.Logs)
}

func TestTriggerCoalescesConcurrentRuns(t *testing.T) {
	cfg := testConfig()
	cfg.Pages = 1
	gate := make(chan struct{})
	fetcher := &fakeFetcher{pages: map[string]string{}, gate: gate}
	cat := catalog.NewService(documents.NewMemoryStore(), "catalog", nil)
	svc := newScraper(t, cfg, fetcher, cat)

	var wg sync.WaitGroup
	var successes atomic.Int32
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Trigger(context.Background())
			if err == nil && res.Success {
				successes.Add(1)
			}
		}()
	}

	require.Eventually(t, func() bool {
		fetcher.mu.Lock()
		defer fetcher.mu.Unlock()
		return fetcher.calls == 1
	}, time.Second, 5*time.Millisecond)
	// Give the other callers time to join the in-flight run.
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, int32(3), successes.Load())
	assert.Equal(t, 1, fetcher.calls)
}

func TestJobFailsWhenRunFails(t *testing.T) {
	cat := catalog.NewService(failingDocs{}, "catalog", nil)
	job := NewJob(newScraper(t, testConfig(), &fakeFetcher{}, cat))
	assert.Equal(t, "scrape", job.Name())
	assert.Error(t, job.Run(context.Background()))

	ok := NewJob(newScraper(t, testConfig(), &fakeFetcher{}, catalog.NewService(documents.NewMemoryStore(), "", nil)))
	assert.NoError(t, ok.Run(context.Background()))
}

func TestCollyFetcherSendsBrowserHeaders(t *testing.T) {
	var gotUA, gotReferer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/blocked" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		gotUA = r.Header.Get("User-Agent")
		gotReferer = r.Header.Get("Referer")
		_, _ = w.Write([]byte(pageWith("https://cdn.example.com/a.mp3")))
	}))
	defer srv.Close()

	fetcher := NewCollyFetcher(2*time.Second, "")
	body, err := fetcher.Fetch(context.Background(), srv.URL+"/mixes?page=1")
	require.NoError(t, err)
	assert.Contains(t, string(body), "a.mp3")
	assert.Equal(t, browser.UserAgent, gotUA)
	assert.Equal(t, srv.URL+"/", gotReferer)

	_, err = fetcher.Fetch(context.Background(), srv.URL+"/blocked")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusForbidden, statusErr.Status)
}

func TestRunLogsTimedOutListingPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			select {
			case <-time.After(2 * time.Second):
			case <-r.Context().Done():
			}
			return
		}
		_, _ = w.Write([]byte(pageWith("https://cdn.example.com/p" + r.URL.Query().Get("page") + ".mp3")))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.ListingURL = srv.URL + "/mixes?page={page}"
	cfg.MinFresh = 2
	cat := catalog.NewService(documents.NewMemoryStore(), "catalog", nil)

	start := time.Now()
	res, err := newScraper(t, cfg, NewCollyFetcher(100*time.Millisecond, ""), cat).Run(context.Background())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, res.Success)
	assert.Equal(t, []string{"p1", "p3"}, collectionIDs(t, cat))

	var timedOut bool
	for _, line := range res.Logs {
		if strings.HasPrefix(line, "page 2: ") && strings.Contains(line, "failed") {
			timedOut = true
		}
	}
	assert.True(t, timedOut, res.Logs)
}

func TestCollyFetcherTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	start := time.Now()
	_, err := NewCollyFetcher(100*time.Millisecond, "").Fetch(context.Background(), srv.URL+"/mixes?page=1")
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
	var statusErr *StatusError
	assert.False(t, errors.As(err, &statusErr))
}
