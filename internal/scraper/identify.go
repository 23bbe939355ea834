package scraper

import (
	"fmt"
	"hash/fnv"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	nonIdentifier = regexp.MustCompile(`[^A-Za-z0-9_-]+`)
	dateSegment   = regexp.MustCompile(`(\d{4})[-_.]?(\d{2})[-_.]?(\d{2})`)
	wordSplitter  = regexp.MustCompile(`[-_.\s]+`)
	titleCaser    = cases.Title(language.English)
)

// DeriveID builds a stable identifier from the final path segment of rawURL:
// extension stripped, characters outside [A-Za-z0-9_-] removed. URLs whose
// segment reduces to nothing get a hash of the whole URL instead.
func DeriveID(rawURL string) string {
	segment := lastSegment(rawURL)
	segment = strings.TrimSuffix(segment, path.Ext(segment))
	id := nonIdentifier.ReplaceAllString(segment, "")
	if id != "" {
		return id
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(rawURL))
	return fmt.Sprintf("m%x", h.Sum64())
}

func lastSegment(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	p = strings.TrimRight(p, "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		p = p[i+1:]
	}
	if unescaped, err := url.PathUnescape(p); err == nil {
		p = unescaped
	}
	return p
}

// DeriveTitle renders a display title. A date-shaped path segment becomes
// "Mix of January 2, 2006"; otherwise the file name is split into words.
func DeriveTitle(rawURL string) string {
	name := lastSegment(rawURL)
	name = strings.TrimSuffix(name, path.Ext(name))

	if m := dateSegment.FindStringSubmatch(name); m != nil {
		if t, err := time.Parse("2006-01-02", m[1]+"-"+m[2]+"-"+m[3]); err == nil {
			return "Mix of " + t.Format("January 2, 2006")
		}
	}
	words := wordSplitter.Split(name, -1)
	cleaned := words[:0]
	for _, w := range words {
		if w != "" {
			cleaned = append(cleaned, w)
		}
	}
	if len(cleaned) == 0 {
		return "Untitled"
	}
	return titleCaser.String(strings.Join(cleaned, " "))
}
