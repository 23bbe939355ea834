package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestPageHeaders(t *testing.T) {
	h := PageHeaders("https://origin.example/")
	if h.Get("User-Agent") != UserAgent {
		t.Fatalf("unexpected user agent %q", h.Get("User-Agent"))
	}
	if h.Get("Referer") != "https://origin.example/" {
		t.Fatalf("unexpected referer %q", h.Get("Referer"))
	}
	if !strings.Contains(h.Get("Accept"), "text/html") {
		t.Fatalf("expected html accept header, got %q", h.Get("Accept"))
	}

	if PageHeaders("").Get("Referer") != "" {
		t.Fatal("expected no referer when empty")
	}
}

func TestMediaHeaders(t *testing.T) {
	h := MediaHeaders("https://origin.example/track/1")
	if h.Get("Accept-Encoding") != "identity" {
		t.Fatalf("expected identity encoding, got %q", h.Get("Accept-Encoding"))
	}
	if h.Get("Referer") != "https://origin.example/track/1" {
		t.Fatalf("unexpected referer %q", h.Get("Referer"))
	}
}

func TestOriginRoot(t *testing.T) {
	cases := map[string]string{
		"https://music.example.com/track/42?x=1": "https://music.example.com/",
		"http://127.0.0.1:8080/a":                "http://127.0.0.1:8080/",
		"not a url":                              "",
		"":                                       "",
	}
	for in, want := range cases {
		if got := OriginRoot(in); got != want {
			t.Errorf("OriginRoot(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewRequestCopiesHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	defer srv.Close()

	req, err := NewRequest(context.Background(), srv.URL, PageHeaders("https://ref.example/"))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := NewPageClient(time.Second).Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()

	if got.Get("User-Agent") != UserAgent || got.Get("Referer") != "https://ref.example/" {
		t.Fatalf("headers not forwarded: %v", got)
	}
}

func TestStreamClientBoundsHeaderWait(t *testing.T) {
	client := NewStreamClient(3 * time.Second)
	transport := client.Transport.(*http.Transport)
	if transport.ResponseHeaderTimeout != 3*time.Second {
		t.Fatalf("unexpected header timeout %v", transport.ResponseHeaderTimeout)
	}
	if client.Timeout != 0 {
		t.Fatal("stream client must not bound the whole body")
	}
}

func TestReadPageLimits(t *testing.T) {
	b, err := ReadPage(strings.NewReader("abcdef"), 3)
	if err != nil || string(b) != "abc" {
		t.Fatalf("unexpected %q %v", b, err)
	}
}
