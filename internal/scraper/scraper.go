package scraper

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/angelmondragon/mediagateway/internal/catalog"
	"github.com/angelmondragon/mediagateway/pkg/config"
	pkgerrors "github.com/angelmondragon/mediagateway/pkg/errors"
	"github.com/angelmondragon/mediagateway/pkg/logger"
	"github.com/angelmondragon/mediagateway/pkg/metrics"
)

// Candidate is a media URL found during one run, with its derived id.
type Candidate struct {
	URL string
	ID  string
}

// Result is the outcome reported to callers of a scrape.
type Result struct {
	Success    bool     `json:"success"`
	AddedCount int      `json:"addedCount"`
	TotalCount int      `json:"totalCount"`
	Logs       []string `json:"logs"`
	Error      string   `json:"error,omitempty"`
}

type Params struct {
	Config    config.ScraperConfig
	Catalog   catalog.Service
	Fetcher   Fetcher
	Extractor Extractor
	Fallback  []catalog.MediaRecord
	Metrics   *metrics.RelayMetrics
	Logger    *logger.Logger
	// Intn returns a value in [0, n); defaults to math/rand/v2.
	Intn func(n int) int
}

// Service grows the catalog from listing pages and guarantees a non-empty
// floor of fresh records through the fallback set.
type Service struct {
	catalog     catalog.Service
	fetcher     Fetcher
	extractor   Extractor
	fallback    []catalog.MediaRecord
	metrics     *metrics.RelayMetrics
	logg        *logger.Logger
	intn        func(int) int
	listingURL  string
	pages       int
	collection  string
	minFresh    int
	maxRetained int
	concurrency int
	playMin     int
	playMax     int
	flight      singleflight.Group
}

func NewService(p Params) (*Service, error) {
	if p.Catalog == nil {
		return nil, fmt.Errorf("catalog service required")
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	if p.Fetcher == nil {
		p.Fetcher = NewCollyFetcher(p.Config.Timeout, p.Config.Referer)
	}
	if p.Extractor == nil {
		p.Extractor = DefaultExtractor()
	}
	if p.Fallback == nil {
		fallback, err := LoadFallback()
		if err != nil {
			return nil, err
		}
		p.Fallback = fallback
	}
	if p.Intn == nil {
		p.Intn = rand.IntN
	}
	cfg := p.Config
	collection := cfg.Collection
	if collection == "" {
		collection = "mixes"
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Service{
		catalog:     p.Catalog,
		fetcher:     p.Fetcher,
		extractor:   p.Extractor,
		fallback:    p.Fallback,
		metrics:     p.Metrics,
		logg:        p.Logger,
		intn:        p.Intn,
		listingURL:  cfg.ListingURL,
		pages:       cfg.Pages,
		collection:  collection,
		minFresh:    cfg.MinFresh,
		maxRetained: cfg.MaxRetained,
		concurrency: concurrency,
		playMin:     cfg.PlayCountMin,
		playMax:     cfg.PlayCountMax,
	}, nil
}

// Trigger runs a scrape, sharing one in-flight run between overlapping
// callers in this process. The shared run is detached from the caller's
// cancellation so one disconnecting client does not abort it for the others.
func (s *Service) Trigger(ctx context.Context) (Result, error) {
	v, err, _ := s.flight.Do("scrape", func() (any, error) {
		res, err := s.Run(context.WithoutCancel(ctx))
		return res, err
	})
	res, _ := v.(Result)
	return res, err
}

// Run performs one scrape: fetch, extract, dedup, fallback, merge, save.
// Page failures are logged and skipped. The run fails only when the catalog
// cannot be loaded or saved.
func (s *Service) Run(ctx context.Context) (Result, error) {
	ctx = s.logg.WithJob(ctx, "scrape")
	run := &runLog{logg: s.logg, ctx: ctx}

	pages := s.pageURLs()
	if len(pages) == 0 {
		run.add("no listing source configured; using fallback set only")
	}
	bodies := s.fetchAll(ctx, pages, run)

	candidates := s.collect(pages, bodies)
	run.add(fmt.Sprintf("extracted %d unique candidates from %d pages", len(candidates), len(pages)))

	records := make([]catalog.MediaRecord, 0, len(candidates))
	for _, c := range candidates {
		records = append(records, s.synthesize(c))
	}
	s.metrics.AddScraped("scraped", len(records))

	if len(records) < s.minFresh {
		extra := s.fallbackFor(records)
		run.add(fmt.Sprintf("only %d fresh records (minimum %d); adding %d fallback records", len(records), s.minFresh, len(extra)))
		records = append(records, extra...)
		s.metrics.AddScraped("fallback", len(extra))
	}

	doc, err := s.catalog.LoadDocument(ctx)
	if err != nil {
		return run.fail("loading catalog failed", err)
	}
	merged, err := doc.Merge(s.collection, records, s.maxRetained)
	if err != nil {
		return run.fail("merging catalog failed", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "merge failed"))
	}
	if err := s.catalog.SaveDocument(ctx, doc); err != nil {
		return run.fail("saving catalog failed", err)
	}

	run.add(fmt.Sprintf("added %d new records to %s (total %d)", len(merged.Added), s.collection, merged.Total))
	return Result{
		Success:    true,
		AddedCount: len(merged.Added),
		TotalCount: merged.Total,
		Logs:       run.lines(),
	}, nil
}

func (s *Service) pageURLs() []string {
	if s.listingURL == "" || s.pages <= 0 {
		return nil
	}
	urls := make([]string, 0, s.pages)
	for page := 1; page <= s.pages; page++ {
		urls = append(urls, strings.ReplaceAll(s.listingURL, config.PagePlaceholder, strconv.Itoa(page)))
	}
	return urls
}

// fetchAll fetches pages concurrently and returns bodies in page order. A
// failed page leaves a nil body.
func (s *Service) fetchAll(ctx context.Context, pages []string, run *runLog) [][]byte {
	bodies := make([][]byte, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, pageURL := range pages {
		g.Go(func() error {
			start := time.Now()
			body, err := s.fetcher.Fetch(gctx, pageURL)
			if err != nil {
				run.add(fmt.Sprintf("page %d: %s failed: %v", i+1, pageURL, err))
				return nil
			}
			bodies[i] = body
			run.add(fmt.Sprintf("page %d: fetched %d bytes in %s", i+1, len(body), time.Since(start).Round(time.Millisecond)))
			return nil
		})
	}
	_ = g.Wait()
	return bodies
}

func (s *Service) collect(pages []string, bodies [][]byte) []Candidate {
	seen := map[string]struct{}{}
	var out []Candidate
	for i, body := range bodies {
		if body == nil {
			continue
		}
		base, _ := url.Parse(pages[i])
		for _, u := range s.extractor.Extract(body, base) {
			id := DeriveID(u)
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, Candidate{URL: u, ID: id})
		}
	}
	return out
}

func (s *Service) fallbackFor(fresh []catalog.MediaRecord) []catalog.MediaRecord {
	taken := make(map[string]struct{}, len(fresh))
	for _, r := range fresh {
		taken[r.ID] = struct{}{}
	}
	var out []catalog.MediaRecord
	for _, r := range s.fallback {
		if _, dup := taken[r.ID]; dup {
			continue
		}
		taken[r.ID] = struct{}{}
		if r.Plays == 0 {
			r.Plays = s.playCount()
		}
		out = append(out, r)
	}
	return out
}

type runLog struct {
	mu   sync.Mutex
	logs []string
	logg *logger.Logger
	ctx  context.Context
}

func (r *runLog) add(line string) {
	r.mu.Lock()
	r.logs = append(r.logs, line)
	r.mu.Unlock()
	r.logg.Info(r.ctx, line)
}

func (r *runLog) lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.logs))
	copy(out, r.logs)
	return out
}

func (r *runLog) fail(msg string, err error) (Result, error) {
	r.mu.Lock()
	r.logs = append(r.logs, fmt.Sprintf("%s: %v", msg, err))
	r.mu.Unlock()
	r.logg.Error(r.ctx, msg, err)
	return Result{Success: false, Logs: r.lines(), Error: msg}, err
}
