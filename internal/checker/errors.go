package checker

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"

	sharederrors "github.com/khanhnv2901/webharden/internal/shared/errors"
)

// FailureKind categorizes a failed primary fetch.
type FailureKind string

const (
	FailureDNS               FailureKind = "dns_failure"
	FailureTimeout           FailureKind = "timeout"
	FailureConnectionRefused FailureKind = "connection_refused"
	FailureTLS               FailureKind = "tls_error"
	FailureRedirectLoop      FailureKind = "redirect_loop"
	FailureInvalidURL        FailureKind = "invalid_url"
	FailureConnection        FailureKind = "connection_error"
)

// Label is the human-readable category used in recommendations.
func (k FailureKind) Label() string {
	switch k {
	case FailureDNS:
		return "DNS resolution failed"
	case FailureTimeout:
		return "timeout"
	case FailureConnectionRefused:
		return "connection refused"
	case FailureTLS:
		return "TLS negotiation failed"
	case FailureRedirectLoop:
		return "too many redirects"
	case FailureInvalidURL:
		return "invalid URL"
	default:
		return "connection error"
	}
}

// FetchFailure is the fatal error of the primary HTTP fetch.
type FetchFailure struct {
	Kind FailureKind
	URL  string
	Err  error
}

func (e *FetchFailure) Error() string {
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind.Label(), e.Err)
}

func (e *FetchFailure) Unwrap() error { return e.Err }

// TLSProbeError reports a failed direct handshake. It is never fatal.
type TLSProbeError struct {
	Address string
	Err     error
}

func (e *TLSProbeError) Error() string {
	return fmt.Sprintf("tls probe %s: %v", e.Address, e.Err)
}

func (e *TLSProbeError) Unwrap() error { return e.Err }

// RedirectProbeError reports a network failure while probing plain HTTP.
type RedirectProbeError struct {
	URL string
	Err error
}

func (e *RedirectProbeError) Error() string {
	return fmt.Sprintf("redirect probe %s: %v", e.URL, e.Err)
}

func (e *RedirectProbeError) Unwrap() error { return e.Err }

// ClassifyFetchError maps a transport error onto a FailureKind.
func ClassifyFetchError(err error) FailureKind {
	if err == nil {
		return ""
	}

	if errors.Is(err, sharederrors.ErrTooManyRedirects) {
		return FailureRedirectLoop
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return FailureTimeout
		}
		return FailureDNS
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return FailureConnectionRefused
	}

	if isTLSError(err) {
		return FailureTLS
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		msg := urlErr.Err.Error()
		if strings.Contains(msg, "unsupported protocol scheme") || strings.Contains(msg, "no Host in request URL") {
			return FailureInvalidURL
		}
	}
	if errors.Is(err, sharederrors.ErrInvalidTarget) {
		return FailureInvalidURL
	}

	return FailureConnection
}

func isTLSError(err error) bool {
	var (
		verifyErr   *tls.CertificateVerificationError
		recordErr   tls.RecordHeaderError
		unknownAuth x509.UnknownAuthorityError
		hostErr     x509.HostnameError
		invalidErr  x509.CertificateInvalidError
		alertErr    tls.AlertError
	)
	switch {
	case errors.As(err, &verifyErr),
		errors.As(err, &recordErr),
		errors.As(err, &unknownAuth),
		errors.As(err, &hostErr),
		errors.As(err, &invalidErr),
		errors.As(err, &alertErr):
		return true
	}
	return strings.Contains(err.Error(), "tls: ")
}
