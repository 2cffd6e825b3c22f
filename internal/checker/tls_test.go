package checker

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

// trustServer returns a client TLS config that trusts srv's certificate.
func trustServer(srv *httptest.Server) *tls.Config {
	pool := x509.NewCertPool()
	pool.AddCert(srv.Certificate())
	return &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
}

func serverHostPort(t *testing.T, rawURL string) (string, int) {
	t.Helper()
	target := NormalizeTarget(rawURL)
	port, err := strconv.Atoi(target.Port)
	if err != nil {
		t.Fatalf("parse port from %s: %v", rawURL, err)
	}
	return target.Host, port
}

// closedPort returns a local port with nothing listening on it.
func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()
	return port
}

func TestTLSInspector_Inspect(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	host, port := serverHostPort(t, srv.URL)
	inspector := &TLSInspector{Timeout: 5 * time.Second, TLSConfig: trustServer(srv)}

	info, err := inspector.Inspect(context.Background(), host, port)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Status != ProbeOK {
		t.Fatalf("expected status ok, got %s", info.Status)
	}
	if info.TLSVersion == nil || *info.TLSVersion != "TLS 1.3" {
		t.Errorf("expected TLS 1.3, got %v", info.TLSVersion)
	}
	if info.NotAfter == nil || *info.NotAfter == "" {
		t.Fatal("expected notAfter to be populated")
	}
	if _, err := time.Parse(certTimeLayout, *info.NotAfter); err != nil {
		t.Errorf("notAfter %q does not match layout: %v", *info.NotAfter, err)
	}
	if info.Issuer["organizationName"] != "Acme Co" {
		t.Errorf("expected issuer organizationName Acme Co, got %v", info.Issuer)
	}
}

func TestTLSInspector_UntrustedCertificate(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	host, port := serverHostPort(t, srv.URL)
	inspector := &TLSInspector{Timeout: 5 * time.Second}

	info, err := inspector.Inspect(context.Background(), host, port)
	if err == nil {
		t.Fatal("expected verification failure against an unknown CA")
	}
	var probeErr *TLSProbeError
	if !errors.As(err, &probeErr) {
		t.Fatalf("expected *TLSProbeError, got %T", err)
	}
	if info.Status != ProbeUnavailable || info.TLSVersion != nil || info.Issuer != nil {
		t.Errorf("expected unavailable info, got %+v", info)
	}
}

func TestTLSInspector_ClosedPort(t *testing.T) {
	inspector := &TLSInspector{Timeout: 2 * time.Second}

	info, err := inspector.Inspect(context.Background(), "127.0.0.1", closedPort(t))
	if err == nil {
		t.Fatal("expected dial failure")
	}
	if info.Status != ProbeUnavailable {
		t.Errorf("expected unavailable status, got %s", info.Status)
	}
	if info.Error == "" {
		t.Error("expected the failure to be recorded")
	}
}

func TestTLSInspector_PlainHTTPServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	host, port := serverHostPort(t, srv.URL)
	inspector := &TLSInspector{Timeout: 2 * time.Second}

	if _, err := inspector.Inspect(context.Background(), host, port); err == nil {
		t.Fatal("expected handshake failure against plain HTTP")
	}
}

func TestIssuerFields(t *testing.T) {
	name := pkix.Name{
		Names: []pkix.AttributeTypeAndValue{
			{Type: asn1.ObjectIdentifier{2, 5, 4, 6}, Value: "US"},
			{Type: asn1.ObjectIdentifier{2, 5, 4, 10}, Value: "Let's Encrypt"},
			{Type: asn1.ObjectIdentifier{2, 5, 4, 3}, Value: "R3"},
			{Type: asn1.ObjectIdentifier{1, 2, 3, 4}, Value: "custom"},
		},
	}

	fields := issuerFields(name)
	want := map[string]string{
		"countryName":      "US",
		"organizationName": "Let's Encrypt",
		"commonName":       "R3",
		"1.2.3.4":          "custom",
	}
	if len(fields) != len(want) {
		t.Fatalf("expected %d fields, got %v", len(want), fields)
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("fields[%s] = %q, want %q", k, fields[k], v)
		}
	}

	if got := issuerFields(pkix.Name{}); got != nil {
		t.Errorf("expected nil for an empty name, got %v", got)
	}
}

func TestTLSVersionString(t *testing.T) {
	tests := map[uint16]string{
		versionSSL30:     "SSL 3.0",
		tls.VersionTLS10: "TLS 1.0",
		tls.VersionTLS11: "TLS 1.1",
		tls.VersionTLS12: "TLS 1.2",
		tls.VersionTLS13: "TLS 1.3",
		0x9999:           "Unknown (0x9999)",
	}
	for version, want := range tests {
		if got := tlsVersionString(version); got != want {
			t.Errorf("tlsVersionString(0x%04x) = %q, want %q", version, got, want)
		}
	}
}
