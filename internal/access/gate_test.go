package access

import (
	"net/http/httptest"
	"testing"
)

func TestGateAuthorize(t *testing.T) {
	cases := []struct {
		name   string
		secret string
		header string
		sent   string
		want   bool
	}{
		{"no secret allows missing header", "", "", "", true},
		{"no secret allows any header", "", "", "whatever", true},
		{"matching secret", "s3cret", "", "s3cret", true},
		{"wrong secret", "s3cret", "", "nope", false},
		{"missing header", "s3cret", "", "", false},
		{"prefix is not enough", "s3cret", "", "s3cre", false},
		{"custom header", "s3cret", "X-Token", "s3cret", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gate := NewGate(tc.secret, tc.header)
			req := httptest.NewRequest("POST", "/sync", nil)
			if tc.sent != "" {
				req.Header.Set(gate.Header(), tc.sent)
			}
			if got := gate.Authorize(req); got != tc.want {
				t.Fatalf("Authorize() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestGateDefaults(t *testing.T) {
	gate := NewGate("x", "  ")
	if gate.Header() != DefaultHeader {
		t.Fatalf("expected default header, got %q", gate.Header())
	}
	if gate.Open() {
		t.Fatal("gate with a secret must not be open")
	}

	var nilGate *Gate
	if !nilGate.Open() || !nilGate.Validate("anything") {
		t.Fatal("nil gate should behave as open")
	}
}

func TestGateValidate(t *testing.T) {
	gate := NewGate("abc", "")
	if !gate.Validate("abc") {
		t.Fatal("expected valid key")
	}
	if gate.Validate("abd") {
		t.Fatal("expected invalid key")
	}
}
