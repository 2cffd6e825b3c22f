package checker

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// RedirectVerifier checks that the plain-HTTP origin sends clients to HTTPS.
type RedirectVerifier struct {
	Config ClientConfig
}

// Verify requests httpURL with redirects enabled. A network failure yields
// OutcomeUnknown together with a *RedirectProbeError.
func (v *RedirectVerifier) Verify(ctx context.Context, httpURL, httpsURL string) (Outcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, httpURL, nil)
	if err != nil {
		return OutcomeUnknown, &RedirectProbeError{URL: httpURL, Err: err}
	}
	req.Header.Set("User-Agent", userAgentOrDefault(v.Config.UserAgent))

	resp, err := newProbeClient(v.Config).Do(req)
	if err != nil {
		return OutcomeUnknown, &RedirectProbeError{URL: httpURL, Err: err}
	}
	defer drainAndClose(resp.Body)

	return redirectOutcome(redirectCount(resp), resp.Request.URL, httpsURL), nil
}

// redirectOutcome applies the loose equivalence rule: any redirect that ends
// on https, or on a URL starting with the expected https URL, counts as a
// proper upgrade. Path and query rewrites along the chain are tolerated.
func redirectOutcome(redirects int, final *url.URL, httpsURL string) Outcome {
	if redirects == 0 {
		return OutcomeFalse
	}
	if final == nil {
		return OutcomeUnknown
	}
	if final.Scheme == "https" {
		return OutcomeTrue
	}
	return OutcomeOf(strings.HasPrefix(final.String(), httpsURL))
}
