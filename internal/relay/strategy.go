package relay

import (
	"regexp"
	"strings"
)

var audioExtensions = []string{"mp3", "m4a", "aac", "wav", "ogg", "flac", "opus"}

// Absolute audio URLs, literal or with JSON-escaped slashes.
var audioURLPattern = regexp.MustCompile(
	`(?i)https?:\\?/\\?/(?:[^\s"'<>()\\]|\\/)+?\.(?:` + strings.Join(audioExtensions, "|") + `)\b(?:\?[^\s"'<>\\]*)?`,
)

// "file": "https://...", "src":"...", "audio_url": '...' and similar inline
// assignments.
var assignmentPattern = regexp.MustCompile(
	`(?i)["']?(?:file|src|url|audio|audio_url|audioUrl|stream|stream_url|streamUrl|mp3)["']?\s*[:=]\s*["'](https?:\\?/\\?/[^"'\s]+)["']`,
)

// Strategy finds candidate media URLs in a source page.
type Strategy interface {
	Name() string
	Candidates(body []byte) []string
}

type audioURLStrategy struct{}

func (audioURLStrategy) Name() string { return "audio-url" }

func (audioURLStrategy) Candidates(body []byte) []string {
	var raw []string
	for _, m := range audioURLPattern.FindAll(body, -1) {
		raw = append(raw, string(m))
	}
	return clean(raw)
}

type assignmentStrategy struct{}

func (assignmentStrategy) Name() string { return "inline-assignment" }

func (assignmentStrategy) Candidates(body []byte) []string {
	var raw []string
	for _, m := range assignmentPattern.FindAllSubmatch(body, -1) {
		raw = append(raw, string(m[1]))
	}
	return clean(raw)
}

// DefaultStrategies returns the strategies in priority order.
func DefaultStrategies() []Strategy {
	return []Strategy{audioURLStrategy{}, assignmentStrategy{}}
}

// clean unescapes JSON slashes and drops duplicates, keeping page order.
func clean(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		u := strings.ReplaceAll(strings.TrimSpace(r), `\/`, "/")
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
