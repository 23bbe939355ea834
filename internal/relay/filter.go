package relay

import (
	"net/url"
	"strings"
)

var (
	advertisingMarkers = []string{"/ads/", "/ad/", "advert", "doubleclick", "preroll", "/promo/"}
	mediaServerMarkers = []string{"/media/", "/uploads/", "/upload/", "/audio/", "/stream/", "media."}
)

// Filter narrows a candidate list. A hard filter may empty the list; a soft
// filter returns its input unchanged when nothing matches.
type Filter struct {
	Name  string
	Apply func(candidates []string) []string
}

// DefaultFilters returns the selection policy in application order. The first
// remaining candidate after all filters wins.
func DefaultFilters() []Filter {
	return []Filter{
		{Name: "exclude-advertising", Apply: excludeMarked(advertisingMarkers)},
		{Name: "prefer-media-server", Apply: preferMarked(mediaServerMarkers)},
		{Name: "fallback-first", Apply: first},
	}
}

// Select applies filters in order and returns the chosen candidate.
func Select(candidates []string, filters []Filter) (string, bool) {
	for _, f := range filters {
		candidates = f.Apply(candidates)
		if len(candidates) == 0 {
			return "", false
		}
	}
	return candidates[0], true
}

func excludeMarked(markers []string) func([]string) []string {
	return func(candidates []string) []string {
		out := make([]string, 0, len(candidates))
		for _, c := range candidates {
			if !hasMarker(c, markers) {
				out = append(out, c)
			}
		}
		return out
	}
}

func preferMarked(markers []string) func([]string) []string {
	return func(candidates []string) []string {
		var out []string
		for _, c := range candidates {
			if hasMarker(c, markers) {
				out = append(out, c)
			}
		}
		if len(out) == 0 {
			return candidates
		}
		return out
	}
}

func first(candidates []string) []string {
	if len(candidates) == 0 {
		return nil
	}
	return candidates[:1]
}

// hasMarker checks the host and path, never the query string.
func hasMarker(rawURL string, markers []string) bool {
	target := strings.ToLower(rawURL)
	if u, err := url.Parse(rawURL); err == nil {
		target = strings.ToLower(u.Host + u.Path)
	}
	for _, m := range markers {
		if strings.Contains(target, m) {
			return true
		}
	}
	return false
}
