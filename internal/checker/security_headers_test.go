package checker

import (
	"net/http"
	"testing"
)

func hardenedHeaders() http.Header {
	headers := http.Header{}
	headers.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
	headers.Set("Content-Security-Policy", "default-src 'self'")
	headers.Set("X-Frame-Options", "DENY")
	headers.Set("X-Content-Type-Options", "nosniff")
	headers.Set("Referrer-Policy", "strict-origin-when-cross-origin")
	headers.Set("Permissions-Policy", "geolocation=(), microphone=()")
	return headers
}

func TestAnalyzeHeaders_AllPresent(t *testing.T) {
	report := AnalyzeHeaders(hardenedHeaders())

	if len(report.Verdicts) != 6 {
		t.Fatalf("expected 6 verdicts, got %d", len(report.Verdicts))
	}
	for name, state := range report.Verdicts {
		if state != HeaderPresent {
			t.Errorf("expected %s present, got %s", name, state)
		}
	}
	if len(report.Deductions) != 0 {
		t.Errorf("expected no deductions, got %+v", report.Deductions)
	}
	if len(report.Leaks) != 0 {
		t.Errorf("expected no leaks, got %+v", report.Leaks)
	}
}

func TestAnalyzeHeaders_AllMissing(t *testing.T) {
	report := AnalyzeHeaders(http.Header{})

	total := 0
	for _, d := range report.Deductions {
		total += d.Points
	}
	if total != 60 {
		t.Errorf("expected 60 points deducted, got %d", total)
	}
	if len(report.Deductions) != 6 {
		t.Fatalf("expected 6 deductions, got %d", len(report.Deductions))
	}
	if report.Deductions[0].Recommendation != "Missing security header: Content-Security-Policy" {
		t.Errorf("unexpected first recommendation %q", report.Deductions[0].Recommendation)
	}
	for _, spec := range SecurityHeaderCatalog() {
		if report.Verdicts[spec.Name] != HeaderMissing {
			t.Errorf("expected %s missing", spec.Name)
		}
	}
}

func TestAnalyzeHeaders_EachMissingHeaderCostsTen(t *testing.T) {
	for _, spec := range SecurityHeaderCatalog() {
		t.Run(spec.Name, func(t *testing.T) {
			headers := hardenedHeaders()
			headers.Del(spec.Name)

			report := AnalyzeHeaders(headers)
			if len(report.Deductions) != 1 {
				t.Fatalf("expected 1 deduction, got %d", len(report.Deductions))
			}
			if report.Deductions[0].Points != PenaltyMissingHeader {
				t.Errorf("expected %d points, got %d", PenaltyMissingHeader, report.Deductions[0].Points)
			}
			if report.Verdicts[spec.Name] != HeaderMissing {
				t.Errorf("expected verdict missing for %s", spec.Name)
			}
		})
	}
}

func TestAnalyzeHeaders_CaseInsensitive(t *testing.T) {
	headers := http.Header{
		"content-security-policy": {"default-src 'self'"},
		"x-frame-options":         {""},
	}

	report := AnalyzeHeaders(headers)
	if report.Verdicts["Content-Security-Policy"] != HeaderPresent {
		t.Error("expected lowercase CSP key to count as present")
	}
	if report.Verdicts["X-Frame-Options"] != HeaderPresent {
		t.Error("expected an empty-valued header to count as present")
	}
}

func TestAnalyzeHeaders_InformationLeaks(t *testing.T) {
	headers := hardenedHeaders()
	headers.Set("Server", "nginx/1.25.3")
	headers.Set("X-Powered-By", "PHP/8.2")

	report := AnalyzeHeaders(headers)
	if len(report.Leaks) != 2 {
		t.Fatalf("expected 2 leaks, got %d", len(report.Leaks))
	}
	if report.Leaks[0] != (LeakFinding{Header: "Server", Value: "nginx/1.25.3"}) {
		t.Errorf("unexpected server leak %+v", report.Leaks[0])
	}
	if report.Leaks[1] != (LeakFinding{Header: "X-Powered-By", Value: "PHP/8.2"}) {
		t.Errorf("unexpected powered-by leak %+v", report.Leaks[1])
	}
	for _, d := range report.Deductions {
		if d.Points != PenaltyLeakHeader {
			t.Errorf("expected leak deduction of %d, got %+v", PenaltyLeakHeader, d)
		}
	}
	if report.Deductions[1].Recommendation != "Information leak header exposed: X-Powered-By" {
		t.Errorf("unexpected recommendation %q", report.Deductions[1].Recommendation)
	}
}

func TestHeaderAdvice(t *testing.T) {
	if got := HeaderAdvice("x-content-type-options"); got != "Add 'X-Content-Type-Options: nosniff'" {
		t.Errorf("unexpected advice %q", got)
	}
	if got := HeaderAdvice("X-Unknown"); got != "" {
		t.Errorf("expected empty advice, got %q", got)
	}
}
