package scraper

import (
	_ "embed"
	"fmt"
	"net/url"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/angelmondragon/mediagateway/internal/catalog"
)

const (
	PlaceholderDuration = "--:--"
	coverTemplate       = "https://picsum.photos/seed/%s/400/400"
)

//go:embed fallback.yaml
var fallbackYAML []byte

// LoadFallback decodes the embedded fallback set.
func LoadFallback() ([]catalog.MediaRecord, error) {
	return ParseFallback(fallbackYAML)
}

func ParseFallback(raw []byte) ([]catalog.MediaRecord, error) {
	var records []catalog.MediaRecord
	if err := yaml.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode fallback set: %w", err)
	}
	for i := range records {
		if records[i].ID == "" {
			records[i].ID = DeriveID(records[i].URL)
		}
		if records[i].Cover == "" {
			records[i].Cover = CoverURL(records[i].ID)
		}
		if records[i].Duration == "" {
			records[i].Duration = PlaceholderDuration
		}
		if records[i].Tags == nil {
			records[i].Tags = []string{}
		}
	}
	return records, nil
}

// CoverURL returns a placeholder cover image seeded by id, so each record
// keeps the same picture across runs.
func CoverURL(id string) string {
	return fmt.Sprintf(coverTemplate, url.PathEscape(id))
}

// synthesize turns a candidate URL into a catalog record.
func (s *Service) synthesize(candidate Candidate) catalog.MediaRecord {
	return catalog.MediaRecord{
		ID:       candidate.ID,
		Title:    DeriveTitle(candidate.URL),
		Artist:   artistFor(candidate.URL),
		Cover:    CoverURL(candidate.ID),
		URL:      candidate.URL,
		Duration: PlaceholderDuration,
		Plays:    s.playCount(),
		Tags:     []string{s.collection, "scraped"},
	}
}

func (s *Service) playCount() int {
	lo, hi := s.playMin, s.playMax
	if hi <= lo {
		return lo
	}
	return lo + s.intn(hi-lo+1)
}

func artistFor(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "Unknown Artist"
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
