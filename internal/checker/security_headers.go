package checker

import (
	"net/http"
	"strings"
)

// SecurityHeaderSpec describes one security header the audit expects.
type SecurityHeaderSpec struct {
	Name           string
	Severity       string // "high" or "medium"
	Recommendation string
}

// securityHeaderCatalog is the closed set of scored security headers.
var securityHeaderCatalog = []SecurityHeaderSpec{
	{
		Name:           "Content-Security-Policy",
		Severity:       "high",
		Recommendation: "Implement a strict Content-Security-Policy appropriate for your application",
	},
	{
		Name:           "Strict-Transport-Security",
		Severity:       "high",
		Recommendation: "Add 'Strict-Transport-Security: max-age=31536000; includeSubDomains; preload'",
	},
	{
		Name:           "X-Frame-Options",
		Severity:       "high",
		Recommendation: "Add 'X-Frame-Options: DENY' or 'SAMEORIGIN'",
	},
	{
		Name:           "X-Content-Type-Options",
		Severity:       "high",
		Recommendation: "Add 'X-Content-Type-Options: nosniff'",
	},
	{
		Name:           "Referrer-Policy",
		Severity:       "medium",
		Recommendation: "Add 'Referrer-Policy: strict-origin-when-cross-origin' or 'no-referrer'",
	},
	{
		Name:           "Permissions-Policy",
		Severity:       "medium",
		Recommendation: "Add 'Permissions-Policy' to control browser features (e.g., 'geolocation=(), microphone=()')",
	},
}

// informationDisclosureHeaders lists headers whose presence alone leaks
// implementation details.
var informationDisclosureHeaders = []string{
	"Server",
	"X-Powered-By",
}

// HeaderReport is the outcome of the header analyzer.
type HeaderReport struct {
	Verdicts   map[string]HeaderState
	Leaks      []LeakFinding
	Deductions []Deduction
}

// SecurityHeaderCatalog returns a copy of the scored security headers in audit order.
func SecurityHeaderCatalog() []SecurityHeaderSpec {
	return append([]SecurityHeaderSpec(nil), securityHeaderCatalog...)
}

// HeaderAdvice returns the remediation hint for a security header, or "".
func HeaderAdvice(name string) string {
	for _, spec := range securityHeaderCatalog {
		if strings.EqualFold(spec.Name, name) {
			return spec.Recommendation
		}
	}
	return ""
}

// AnalyzeHeaders classifies the response headers. Missing security headers
// are deducted first, then leak headers, each in catalog order.
func AnalyzeHeaders(headers http.Header) HeaderReport {
	report := HeaderReport{
		Verdicts: make(map[string]HeaderState, len(securityHeaderCatalog)),
		Leaks:    []LeakFinding{},
	}

	for _, spec := range securityHeaderCatalog {
		if _, ok := lookupHeader(headers, spec.Name); ok {
			report.Verdicts[spec.Name] = HeaderPresent
			continue
		}
		report.Verdicts[spec.Name] = HeaderMissing
		report.Deductions = append(report.Deductions, Deduction{
			Points:         PenaltyMissingHeader,
			Recommendation: "Missing security header: " + spec.Name,
		})
	}

	for _, name := range informationDisclosureHeaders {
		values, ok := lookupHeader(headers, name)
		if !ok {
			continue
		}
		report.Leaks = append(report.Leaks, LeakFinding{Header: name, Value: strings.Join(values, ", ")})
		report.Deductions = append(report.Deductions, Deduction{
			Points:         PenaltyLeakHeader,
			Recommendation: "Information leak header exposed: " + name,
		})
	}

	return report
}

// lookupHeader matches keys case-insensitively, including non-canonical keys
// set directly on the map. A key with an empty value still counts as present.
func lookupHeader(headers http.Header, name string) ([]string, bool) {
	if values, ok := headers[http.CanonicalHeaderKey(name)]; ok {
		return values, true
	}
	for key, values := range headers {
		if strings.EqualFold(key, name) {
			return values, true
		}
	}
	return nil, false
}
