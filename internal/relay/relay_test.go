package relay

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/mediagateway/pkg/browser"
	"github.com/angelmondragon/mediagateway/pkg/config"
	pkgerrors "github.com/angelmondragon/mediagateway/pkg/errors"
)

const audio = "0123456789abcdefghij"

type origin struct {
	mu          sync.Mutex
	srv         *httptest.Server
	page        string
	pageStatus  int
	mediaStatus int
	pageReferer string
	referer     string
	userAgent   string
	rangeHeader string
	block       chan struct{}
}

func newOrigin(t *testing.T) *origin {
	t.Helper()
	o := &origin{pageStatus: http.StatusOK, mediaStatus: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc("/track/", func(w http.ResponseWriter, r *http.Request) {
		o.mu.Lock()
		o.pageReferer = r.Header.Get("Referer")
		status, page := o.pageStatus, o.page
		o.mu.Unlock()
		w.WriteHeader(status)
		_, _ = io.WriteString(w, strings.ReplaceAll(page, "{origin}", o.srv.URL))
	})
	mux.HandleFunc("/media/", func(w http.ResponseWriter, r *http.Request) {
		o.mu.Lock()
		o.referer = r.Header.Get("Referer")
		o.userAgent = r.Header.Get("User-Agent")
		o.rangeHeader = r.Header.Get("Range")
		status, block := o.mediaStatus, o.block
		o.mu.Unlock()
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		if block != nil {
			w.Header().Set("Content-Type", "audio/mpeg")
			w.WriteHeader(http.StatusOK)
			_, _ = io.WriteString(w, "abc")
			w.(http.Flusher).Flush()
			select {
			case <-block:
			case <-r.Context().Done():
			}
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("X-Internal", "secret")
		http.ServeContent(w, r, "song.mp3", time.Unix(0, 0), strings.NewReader(audio))
	})
	o.srv = httptest.NewServer(mux)
	t.Cleanup(o.srv.Close)
	return o
}

func (o *origin) seen() (pageReferer, referer, userAgent, rangeHeader string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pageReferer, o.referer, o.userAgent, o.rangeHeader
}

func (o *origin) service() *Service {
	return NewService(Params{Config: config.RelayConfig{
		SourceURL:     o.srv.URL + "/track/{id}",
		Timeout:       2 * time.Second,
		HeaderTimeout: 2 * time.Second,
	}})
}

func TestOpenRelaysWithSourceReferer(t *testing.T) {
	o := newOrigin(t)
	o.page = `<script>var player = {"file":"{origin}\/media\/song.mp3"};</script>`

	stream, err := o.service().Open(context.Background(), "abc-123", "bytes=2-5")
	require.NoError(t, err)
	defer stream.Body.Close()

	body, err := io.ReadAll(stream.Body)
	require.NoError(t, err)
	assert.Equal(t, "2345", string(body))
	assert.Equal(t, http.StatusPartialContent, stream.Status)
	assert.Equal(t, "bytes 2-5/20", stream.Header.Get("Content-Range"))
	assert.Equal(t, `"v1"`, stream.Header.Get("ETag"))
	assert.Empty(t, stream.Header.Get("X-Internal"))

	pageReferer, referer, userAgent, rangeHeader := o.seen()
	assert.Equal(t, o.srv.URL+"/track/abc-123", referer)
	assert.Equal(t, browser.UserAgent, userAgent)
	assert.Equal(t, "bytes=2-5", rangeHeader)
	assert.Equal(t, o.srv.URL+"/", pageReferer)
	assert.Equal(t, "audio-url", stream.Resolution.Strategy)
}

func TestOpenWithoutRangeReturnsWholeBody(t *testing.T) {
	o := newOrigin(t)
	o.page = `<audio src="{origin}/media/song.mp3"></audio>`

	stream, err := o.service().Open(context.Background(), "x", "")
	require.NoError(t, err)
	defer stream.Body.Close()

	var sink strings.Builder
	n, err := o.service().Pipe(&sink, stream)
	require.NoError(t, err)
	assert.Equal(t, int64(len(audio)), n)
	assert.Equal(t, audio, sink.String())
	assert.Equal(t, http.StatusOK, stream.Status)
	_, _, _, rangeHeader := o.seen()
	assert.Empty(t, rangeHeader)
}

func TestResolveFallsBackToAssignment(t *testing.T) {
	o := newOrigin(t)
	o.page = `<script>config = { stream_url: "{origin}/media/play?token=1" }</script>`

	res, err := o.service().Resolve(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "inline-assignment", res.Strategy)
	assert.Equal(t, o.srv.URL+"/media/play?token=1", res.MediaURL)
}

func TestResolveNotFound(t *testing.T) {
	o := newOrigin(t)
	o.page = `<html><body>nothing to play</body></html>`

	_, err := o.service().Resolve(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestResolveOnlyAdvertisingIsNotFound(t *testing.T) {
	o := newOrigin(t)
	o.page = `<a href="https://cdn.example.com/ads/preroll.mp3">ad</a>`

	_, err := o.service().Resolve(context.Background(), "x")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestResolveMovesPastStrategyWithOnlyAdvertising(t *testing.T) {
	o := newOrigin(t)
	o.page = `<a href="{origin}/ads/preroll.mp3">ad</a>
<script>config = { stream_url: "{origin}/media/play?token=2" }</script>`

	res, err := o.service().Resolve(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "inline-assignment", res.Strategy)
	assert.Equal(t, o.srv.URL+"/media/play?token=2", res.MediaURL)
}

func TestResolvePageFailureIsBadGateway(t *testing.T) {
	o := newOrigin(t)
	o.pageStatus = http.StatusForbidden

	_, err := o.service().Resolve(context.Background(), "x")
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeUpstream, appErr.Code())
	assert.Equal(t, http.StatusBadGateway, appErr.HTTPStatus())
}

func TestResolvePageTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()

	svc := NewService(Params{Config: config.RelayConfig{SourceURL: slow.URL + "/{id}", Timeout: 50 * time.Millisecond}})
	_, err := svc.Resolve(context.Background(), "x")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUpstreamTimeout))
}

func TestOpenMediaHeaderTimeout(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/track/") {
			_, _ = io.WriteString(w, `"`+srv.URL+`/media/song.mp3"`)
			return
		}
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	svc := NewService(Params{Config: config.RelayConfig{
		SourceURL:     srv.URL + "/track/{id}",
		Timeout:       2 * time.Second,
		HeaderTimeout: 100 * time.Millisecond,
	}})
	start := time.Now()
	_, err := svc.Open(context.Background(), "x", "")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUpstreamTimeout), err.Error())
	assert.Less(t, time.Since(start), time.Second)
}

func TestOpenPropagatesUpstreamStatus(t *testing.T) {
	o := newOrigin(t)
	o.page = `"{origin}/media/song.mp3"`
	o.mediaStatus = http.StatusForbidden

	_, err := o.service().Open(context.Background(), "x", "")
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, http.StatusForbidden, appErr.HTTPStatus())
}

func TestOpenCancelStopsUpstream(t *testing.T) {
	o := newOrigin(t)
	o.page = `"{origin}/media/song.mp3"`
	o.block = make(chan struct{})
	defer close(o.block)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := o.service().Open(ctx, "x", "")
	require.NoError(t, err)
	defer stream.Body.Close()

	buf := make([]byte, 3)
	_, err = io.ReadFull(stream.Body, buf)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(buf))

	cancel()
	done := make(chan error, 1)
	go func() {
		_, err := io.ReadAll(stream.Body)
		done <- err
	}()
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("upstream read did not stop after cancellation")
	}
}

func TestSourceURLValidation(t *testing.T) {
	svc := NewService(Params{Config: config.RelayConfig{SourceURL: "https://origin.example.com/t/{id}"}})

	u, err := svc.SourceURL("Track_01-b")
	require.NoError(t, err)
	assert.Equal(t, "https://origin.example.com/t/Track_01-b", u)

	for _, bad := range []string{"", "../etc", "a/b", "a b", "-lead", strings.Repeat("a", 129)} {
		_, err := svc.SourceURL(bad)
		assert.Truef(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "id %q", bad)
	}

	_, err = NewService(Params{}).SourceURL("x")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConfiguration))
}

func TestSelectFilters(t *testing.T) {
	cases := []struct {
		name       string
		candidates []string
		want       string
		ok         bool
	}{
		{"first wins", []string{"https://a.example.com/x.mp3", "https://b.example.com/y.mp3"}, "https://a.example.com/x.mp3", true},
		{"advertising excluded", []string{"https://a.example.com/ads/x.mp3", "https://b.example.com/y.mp3"}, "https://b.example.com/y.mp3", true},
		{"media server preferred", []string{"https://a.example.com/x.mp3", "https://b.example.com/uploads/y.mp3"}, "https://b.example.com/uploads/y.mp3", true},
		{"query ignored", []string{"https://a.example.com/x.mp3?from=/ads/", "https://b.example.com/y.mp3"}, "https://a.example.com/x.mp3?from=/ads/", true},
		{"all advertising", []string{"https://doubleclick.example.com/x.mp3"}, "", false},
		{"empty", nil, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Select(tc.candidates, DefaultFilters())
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAudioURLStrategy(t *testing.T) {
	body := []byte(`<a href="https://cdn.example.com/a.mp3">a</a>
<script>x = "https:\/\/cdn.example.com\/b.M4A?sig=abc"; y = "https://cdn.example.com/a.mp3"</script>
<img src="https://cdn.example.com/cover.jpg">`)
	got := audioURLStrategy{}.Candidates(body)
	assert.Equal(t, []string{"https://cdn.example.com/a.mp3", "https://cdn.example.com/b.M4A?sig=abc"}, got)
}

func ExampleSelect() {
	got, _ := Select([]string{
		"https://cdn.example.com/ads/intro.mp3",
		"https://cdn.example.com/x.mp3",
		"https://media.example.com/x.mp3",
	}, DefaultFilters())
	fmt.Println(got)
	// Output: https://media.example.com/x.mp3
}
