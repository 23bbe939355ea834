package scraper

import (
	"bytes"
	"net/url"
	"path"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// MediaExtensions lists the file extensions treated as playable media.
var MediaExtensions = []string{"mp3", "m4a", "aac", "wav", "ogg", "flac"}

// Matches absolute media URLs written literally or with JSON-escaped slashes
// (https:\/\/host\/a.mp3), as found inside inline script blocks.
var mediaURLPattern = regexp.MustCompile(
	`(?i)https?:\\?/\\?/(?:[^\s"'<>()\\]|\\/)+?\.(?:` + strings.Join(MediaExtensions, "|") + `)\b`,
)

// Extractor pulls candidate media URLs out of a fetched page. base resolves
// relative references and may be nil.
type Extractor interface {
	Extract(body []byte, base *url.URL) []string
}

// PatternExtractor scans raw page text with a regular expression. It finds
// URLs in markup, attributes and script blocks alike.
type PatternExtractor struct{}

func (PatternExtractor) Extract(body []byte, _ *url.URL) []string {
	matches := mediaURLPattern.FindAll(body, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, Unescape(string(m)))
	}
	return out
}

// Unescape turns JSON-escaped slashes back into plain ones.
func Unescape(raw string) string {
	raw = strings.ReplaceAll(raw, `\/`, "/")
	return strings.TrimSpace(raw)
}

// DOMExtractor parses the page and reads media references from audio, video,
// source and anchor elements, including relative ones.
type DOMExtractor struct{}

var domAttributes = map[string][]string{
	"audio":  {"src", "data-src"},
	"video":  {"src", "data-src"},
	"source": {"src", "data-src"},
	"a":      {"href", "data-audio", "data-src"},
	"div":    {"data-audio", "data-src"},
	"button": {"data-audio", "data-src"},
}

func (DOMExtractor) Extract(body []byte, base *url.URL) []string {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil
	}
	var out []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if attrs, ok := domAttributes[n.Data]; ok {
				for _, a := range n.Attr {
					if !contains(attrs, a.Key) {
						continue
					}
					if u := resolveMedia(a.Val, base); u != "" {
						out = append(out, u)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out
}

func resolveMedia(ref string, base *url.URL) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if !u.IsAbs() {
		if base == nil {
			return ""
		}
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	if !HasMediaExtension(u.Path) {
		return ""
	}
	return u.String()
}

// HasMediaExtension reports whether p ends in a known media extension.
func HasMediaExtension(p string) bool {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(p)), ".")
	return contains(MediaExtensions, ext)
}

// CompositeExtractor runs every extractor in order and keeps the first
// occurrence of each URL.
type CompositeExtractor []Extractor

func (c CompositeExtractor) Extract(body []byte, base *url.URL) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, ex := range c {
		for _, u := range ex.Extract(body, base) {
			if _, dup := seen[u]; dup {
				continue
			}
			seen[u] = struct{}{}
			out = append(out, u)
		}
	}
	return out
}

// DefaultExtractor is the pattern scan followed by the DOM walk.
func DefaultExtractor() Extractor {
	return CompositeExtractor{PatternExtractor{}, DOMExtractor{}}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
