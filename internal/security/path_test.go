package security

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveWithinValidPath(t *testing.T) {
	base := t.TempDir()

	resolved, err := ResolveWithin(base, "report_example.com_20250101_120000.json")
	if err != nil {
		t.Fatalf("ResolveWithin returned error: %v", err)
	}
	if !strings.HasPrefix(resolved, base) {
		t.Fatalf("expected resolved path %s to stay within base %s", resolved, base)
	}

	if err := os.WriteFile(resolved, []byte("{}"), 0o600); err != nil {
		t.Fatalf("failed to write resolved file: %v", err)
	}
}

func TestResolveWithinBlocksEscape(t *testing.T) {
	base := t.TempDir()
	_, err := ResolveWithin(base, "..", "etc", "passwd")
	if !errors.Is(err, ErrPathEscape) {
		t.Fatalf("expected ErrPathEscape, got %v", err)
	}
}

func TestResolveWithinEmptyBase(t *testing.T) {
	if _, err := ResolveWithin("", "report.json"); !errors.Is(err, ErrEmptyBase) {
		t.Fatalf("expected ErrEmptyBase, got %v", err)
	}
}

func TestResolveWithinMultipleElements(t *testing.T) {
	base := t.TempDir()

	resolved, err := ResolveWithin(base, "a", "b", "report.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if expected := filepath.Join(base, "a", "b", "report.html"); resolved != expected {
		t.Errorf("expected %s, got %s", expected, resolved)
	}
}

func TestSafeFileComponent(t *testing.T) {
	tests := map[string]string{
		"example.com":      "example.com",
		"example.com:8443": "example.com_8443",
		"../../etc":        "etc",
		"[::1]:443":        "1__443",
		"":                 "unknown",
		"a/b\\c":           "a_b_c",
	}
	for in, want := range tests {
		if got := SafeFileComponent(in); got != want {
			t.Errorf("SafeFileComponent(%q) = %q, want %q", in, got, want)
		}
	}
}
