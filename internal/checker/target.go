package checker

import (
	"net"
	"net/url"
	"strings"
)

// AuditTarget is a canonicalized absolute URL.
type AuditTarget struct {
	Scheme   string // http or https for well-formed input
	Host     string // Hostname without port
	Port     string // Explicit port, empty when defaulted
	Path     string
	RawQuery string
	URL      string // Full normalized URL used for the primary fetch

	parsed *url.URL
}

// IsHTTPS reports whether the target is served over TLS.
func (t AuditTarget) IsHTTPS() bool {
	return t.Scheme == "https"
}

// WithScheme rebuilds the target URL under another scheme, keeping host, path and
// query. A non-empty port replaces the target's port.
func (t AuditTarget) WithScheme(scheme, port string) string {
	if t.parsed == nil {
		return ""
	}
	u := *t.parsed
	u.Scheme = scheme
	if port != "" {
		u.Host = net.JoinHostPort(t.Host, port)
	}
	return u.String()
}

// NormalizeTarget canonicalizes user input into an AuditTarget. It accepts:
//   - example.com
//   - example.com:8443/login
//   - http://example.com
//   - https://example.com:443/path?q=1
//
// Input without a scheme is treated as https. NormalizeTarget never fails;
// malformed input yields a best-effort target that fails later at fetch time.
func NormalizeTarget(raw string) AuditTarget {
	trimmed := strings.TrimSpace(raw)
	var info AuditTarget

	parsed, err := url.Parse(trimmed)
	if (err != nil || !hasRealScheme(parsed)) && !strings.Contains(trimmed, "://") {
		parsed, err = url.Parse("https://" + trimmed)
	}

	if err != nil || parsed == nil {
		// Unparseable even with a scheme: keep the raw text so the fetch
		// reports it as an invalid URL.
		host := strings.TrimPrefix(strings.TrimPrefix(trimmed, "http://"), "https://")
		host = strings.SplitN(host, "/", 2)[0]
		info.Scheme = "https"
		if strings.HasPrefix(trimmed, "http://") {
			info.Scheme = "http"
		}
		info.Host = host
		if h, p, splitErr := net.SplitHostPort(host); splitErr == nil {
			info.Host, info.Port = h, p
		}
		info.URL = info.Scheme + "://" + host
		return info
	}

	// "https:example.com" and "https:/example.com" carry the host in the
	// opaque part or the path.
	if parsed.Host == "" {
		switch {
		case parsed.Opaque != "":
			promoteToHost(parsed, parsed.Opaque)
		case strings.Trim(parsed.Path, "/") != "":
			promoteToHost(parsed, strings.TrimLeft(parsed.Path, "/"))
		}
	}

	info.parsed = parsed
	info.Scheme = parsed.Scheme
	info.Host = parsed.Hostname()
	info.Port = parsed.Port()
	info.Path = parsed.Path
	info.RawQuery = parsed.RawQuery
	info.URL = parsed.String()
	return info
}

// hasRealScheme rejects parses where a host:port was mistaken for scheme:opaque.
func hasRealScheme(u *url.URL) bool {
	if u == nil || u.Scheme == "" {
		return false
	}
	if strings.Contains(u.Scheme, ".") {
		return false
	}
	if u.Opaque != "" && u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return true
}

func promoteToHost(u *url.URL, rest string) {
	host, path, _ := strings.Cut(rest, "/")
	u.Opaque = ""
	u.Host = host
	u.Path = ""
	if path != "" {
		u.Path = "/" + path
	}
}

// ExtractHost extracts just the hostname from a target.
func ExtractHost(target string) string {
	return NormalizeTarget(target).Host
}
