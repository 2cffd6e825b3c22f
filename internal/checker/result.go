package checker

import (
	"encoding/json"
	"fmt"
	"time"
)

// HeaderState records whether a security header was returned by the target.
type HeaderState string

const (
	HeaderPresent HeaderState = "present"
	HeaderMissing HeaderState = "missing"
)

// ProbeStatus distinguishes "checked" from "could not check" for probes whose
// data is optional.
type ProbeStatus string

const (
	ProbeOK          ProbeStatus = "ok"
	ProbeUnavailable ProbeStatus = "unavailable"
	ProbeSkipped     ProbeStatus = "skipped"
)

// Outcome is a tri-state check result. The zero value is OutcomeUnknown.
type Outcome int

const (
	OutcomeUnknown Outcome = iota
	OutcomeTrue
	OutcomeFalse
)

// OutcomeOf converts a boolean into a known Outcome.
func OutcomeOf(ok bool) Outcome {
	if ok {
		return OutcomeTrue
	}
	return OutcomeFalse
}

func (o Outcome) String() string {
	switch o {
	case OutcomeTrue:
		return "true"
	case OutcomeFalse:
		return "false"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the outcome as true, false or null.
func (o Outcome) MarshalJSON() ([]byte, error) {
	switch o {
	case OutcomeTrue:
		return []byte("true"), nil
	case OutcomeFalse:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts true, false and null.
func (o *Outcome) UnmarshalJSON(data []byte) error {
	var v *bool
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decode outcome: %w", err)
	}
	if v == nil {
		*o = OutcomeUnknown
		return nil
	}
	*o = OutcomeOf(*v)
	return nil
}

// LeakFinding is an information-disclosure header and the value it exposed.
type LeakFinding struct {
	Header string `json:"header"`
	Value  string `json:"value"`
}

// CookieFlags holds the hygiene flags parsed from one Set-Cookie entry.
type CookieFlags struct {
	Name     string  `json:"name"`
	Secure   bool    `json:"secure"`
	HttpOnly bool    `json:"httponly"`
	SameSite *string `json:"samesite"`
}

// HTTPSInfo is the certificate and protocol metadata from a direct TLS handshake.
// Every field is optional: Status tells consumers whether the probe ran.
type HTTPSInfo struct {
	Status     ProbeStatus       `json:"status"`
	Issuer     map[string]string `json:"issuer"`
	NotAfter   *string           `json:"not_after"`
	TLSVersion *string           `json:"tls_version"`
	Error      string            `json:"error,omitempty"`
}

// CheckOutcome is a named tri-state check.
type CheckOutcome struct {
	Name   string  `json:"name"`
	Result Outcome `json:"result"`
	Detail string  `json:"detail,omitempty"`
}

// Check names.
const (
	CheckHTTPToHTTPSRedirect = "http_to_https_redirect"
)

// AuditResult is the frozen outcome of one audit run.
type AuditResult struct {
	URL             string                 `json:"url"`
	Timestamp       time.Time              `json:"timestamp"`
	Headers         map[string]HeaderState `json:"headers"`
	Leaks           []LeakFinding          `json:"leaks"`
	Cookies         []CookieFlags          `json:"cookies"`
	HTTPS           HTTPSInfo              `json:"https"`
	Checks          []CheckOutcome         `json:"checks"`
	Score           int                    `json:"score"`
	Recommendations []string               `json:"recommendations"`
	Failure         FailureKind            `json:"failure,omitempty"`
}

// Check returns the named check outcome, if it ran.
func (r AuditResult) Check(name string) (CheckOutcome, bool) {
	for _, c := range r.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return CheckOutcome{}, false
}

// Failed reports whether the primary fetch failed.
func (r AuditResult) Failed() bool {
	return r.Failure != ""
}

// MissingHeaders lists the canonical security headers reported missing, in catalog order.
func (r AuditResult) MissingHeaders() []string {
	var out []string
	for _, spec := range securityHeaderCatalog {
		if r.Headers[spec.Name] == HeaderMissing {
			out = append(out, spec.Name)
		}
	}
	return out
}

func newAuditResult(target AuditTarget, now time.Time) AuditResult {
	return AuditResult{
		URL:             target.URL,
		Timestamp:       now.UTC(),
		Headers:         map[string]HeaderState{},
		Leaks:           []LeakFinding{},
		Cookies:         []CookieFlags{},
		HTTPS:           HTTPSInfo{Status: ProbeSkipped},
		Checks:          []CheckOutcome{},
		Recommendations: []string{},
	}
}
