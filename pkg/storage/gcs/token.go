package gcs

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/mediagateway/pkg/config"
)

const (
	tokenEndpoint = "https://oauth2.googleapis.com/token"
	storageScope  = "https://www.googleapis.com/auth/devstorage.read_write"
	metadataToken = "http://metadata.google.internal/computeMetadata/v1/instance/service-accounts/default/token"

	jwtBearerGrant = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	// refreshSkew renews a token this long before it expires.
	refreshSkew = time.Minute
)

type accessToken struct {
	value  string
	expiry time.Time
}

type tokenFetcher func(ctx context.Context) (accessToken, error)

// tokenSource hands out a cached access token and refetches it close to
// expiry. Concurrent callers wait on one fetch.
type tokenSource struct {
	fetch tokenFetcher
	now   func() time.Time

	mu  sync.Mutex
	cur accessToken
}

func newCachedSource(fetch tokenFetcher) *tokenSource {
	return &tokenSource{fetch: fetch, now: time.Now}
}

func (t *tokenSource) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cur.value != "" && t.now().Add(refreshSkew).Before(t.cur.expiry) {
		return t.cur.value, nil
	}
	tok, err := t.fetch(ctx)
	if err != nil {
		return "", err
	}
	t.cur = tok
	return tok.value, nil
}

// newTokenSource picks inline JSON credentials, then a credentials file, then
// the GCE metadata server.
func newTokenSource(client *http.Client, gcp config.GCPConfig) (*tokenSource, error) {
	raw := gcp.CredentialsJSON
	if raw == "" && gcp.ApplicationCredentials != "" {
		b, err := os.ReadFile(gcp.ApplicationCredentials)
		if err != nil {
			return nil, fmt.Errorf("reading credentials file: %w", err)
		}
		raw = string(b)
	}
	if raw == "" {
		return newCachedSource(metadataFetcher(client)), nil
	}
	fetch, err := serviceAccountFetcher(client, raw)
	if err != nil {
		return nil, err
	}
	return newCachedSource(fetch), nil
}

type serviceAccount struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`
}

func serviceAccountFetcher(client *http.Client, raw string) (tokenFetcher, error) {
	var sa serviceAccount
	if err := json.Unmarshal([]byte(raw), &sa); err != nil {
		return nil, fmt.Errorf("parsing service account credentials: %w", err)
	}
	if sa.ClientEmail == "" || sa.PrivateKey == "" {
		return nil, errors.New("service account credentials need client_email and private_key")
	}
	if sa.TokenURI == "" {
		sa.TokenURI = tokenEndpoint
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(sa.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("parsing service account key: %w", err)
	}

	return func(ctx context.Context) (accessToken, error) {
		assertion, err := signedAssertion(sa.ClientEmail, sa.TokenURI, key, time.Now())
		if err != nil {
			return accessToken{}, err
		}
		form := url.Values{"grant_type": {jwtBearerGrant}, "assertion": {assertion}}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, sa.TokenURI, strings.NewReader(form.Encode()))
		if err != nil {
			return accessToken{}, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return exchangeToken(client, req)
	}, nil
}

func metadataFetcher(client *http.Client) tokenFetcher {
	return func(ctx context.Context) (accessToken, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, metadataToken, nil)
		if err != nil {
			return accessToken{}, err
		}
		req.Header.Set("Metadata-Flavor", "Google")
		return exchangeToken(client, req)
	}
}

func exchangeToken(client *http.Client, req *http.Request) (accessToken, error) {
	resp, err := client.Do(req)
	if err != nil {
		return accessToken{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return accessToken{}, fmt.Errorf("token request to %s: %s: %s", req.URL.Host, resp.Status, strings.TrimSpace(string(excerpt)))
	}
	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return accessToken{}, fmt.Errorf("decoding token response: %w", err)
	}
	if body.AccessToken == "" {
		return accessToken{}, errors.New("token response has no access_token")
	}
	ttl := time.Duration(body.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}
	return accessToken{value: body.AccessToken, expiry: time.Now().Add(ttl)}, nil
}

// assertionClaims is the JWT a service account signs to get an access token.
type assertionClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

func signedAssertion(email, audience string, key *rsa.PrivateKey, now time.Time) (string, error) {
	claims := assertionClaims{
		Scope: storageScope,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    email,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
}
