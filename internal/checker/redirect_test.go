package checker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"
)

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %s: %v", raw, err)
	}
	return u
}

func TestRedirectOutcome(t *testing.T) {
	tests := []struct {
		name      string
		redirects int
		final     string
		httpsURL  string
		want      Outcome
	}{
		{"no redirect", 0, "http://example.com/", "https://example.com/", OutcomeFalse},
		{"upgraded to https", 1, "https://example.com/", "https://example.com/", OutcomeTrue},
		{"upgraded with rewritten path", 2, "https://www.example.com/home", "https://example.com/", OutcomeTrue},
		{"redirected but stayed on http", 1, "http://example.com/login", "https://example.com/", OutcomeFalse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := redirectOutcome(tt.redirects, mustParseURL(t, tt.final), tt.httpsURL)
			if got != tt.want {
				t.Errorf("redirectOutcome = %s, want %s", got, tt.want)
			}
		})
	}

	if got := redirectOutcome(1, nil, "https://example.com/"); got != OutcomeUnknown {
		t.Errorf("expected unknown without a final URL, got %s", got)
	}
}

func TestRedirectVerifier_Upgrades(t *testing.T) {
	tlsSrv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer tlsSrv.Close()

	plain := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, tlsSrv.URL+r.URL.Path, http.StatusMovedPermanently)
	}))
	defer plain.Close()

	verifier := &RedirectVerifier{Config: ClientConfig{Timeout: 5 * time.Second, TLSConfig: trustServer(tlsSrv)}}
	outcome, err := verifier.Verify(context.Background(), plain.URL+"/", tlsSrv.URL+"/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeTrue {
		t.Fatalf("expected true, got %s", outcome)
	}
}

func TestRedirectVerifier_NoRedirect(t *testing.T) {
	plain := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer plain.Close()

	verifier := &RedirectVerifier{Config: ClientConfig{Timeout: 5 * time.Second}}
	outcome, err := verifier.Verify(context.Background(), plain.URL, "https://example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeFalse {
		t.Fatalf("expected false, got %s", outcome)
	}
}

func TestRedirectVerifier_Unreachable(t *testing.T) {
	verifier := &RedirectVerifier{Config: ClientConfig{Timeout: 2 * time.Second}}
	httpURL := "http://127.0.0.1:" + strconv.Itoa(closedPort(t))

	outcome, err := verifier.Verify(context.Background(), httpURL, "https://127.0.0.1")
	if err == nil {
		t.Fatal("expected probe error")
	}
	var probeErr *RedirectProbeError
	if !errors.As(err, &probeErr) {
		t.Fatalf("expected *RedirectProbeError, got %T", err)
	}
	if outcome != OutcomeUnknown {
		t.Fatalf("expected unknown, got %s", outcome)
	}
}
