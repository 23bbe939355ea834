package access

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const DefaultHeader = "X-Admin-Key"

// Gate checks the shared admin secret guarding mutating endpoints. A gate with
// no secret configured authorizes every request.
type Gate struct {
	secret string
	header string
}

func NewGate(secret, header string) *Gate {
	if strings.TrimSpace(header) == "" {
		header = DefaultHeader
	}
	return &Gate{secret: secret, header: header}
}

// Open reports whether no secret is configured.
func (g *Gate) Open() bool {
	return g == nil || g.secret == ""
}

func (g *Gate) Header() string {
	if g == nil {
		return DefaultHeader
	}
	return g.header
}

// Authorize reports whether r carries the configured secret.
func (g *Gate) Authorize(r *http.Request) bool {
	if g.Open() {
		return true
	}
	return g.Validate(r.Header.Get(g.header))
}

// Validate compares a candidate key with the secret in constant time. With no
// secret configured every candidate is valid.
func (g *Gate) Validate(candidate string) bool {
	if g.Open() {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(g.secret)) == 1
}
