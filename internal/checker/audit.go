package checker

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/khanhnv2901/webharden/internal/metrics"
	consts "github.com/khanhnv2901/webharden/internal/shared/constants"
)

// Auditor runs the single-target audit pipeline.
type Auditor struct {
	Timeout   time.Duration     // Per-probe timeout; zero means DefaultTimeout
	TLSConfig *tls.Config       // Optional base TLS config for every probe
	Transport http.RoundTripper // Optional transport for the HTTP probes
	TLSPort   int               // Direct handshake port; zero means the target port or 443
	HTTPPort  int               // Plain-HTTP redirect probe port; zero keeps the target port
	UserAgent string
	Logger    *zap.Logger
	Now       func() time.Time
}

// Audit runs one audit with default settings. It always returns a complete
// result; a failed fetch yields score 0 and one recommendation.
func Audit(rawURL string, timeout time.Duration) AuditResult {
	a := &Auditor{Timeout: timeout}
	return a.Run(context.Background(), rawURL)
}

// Check implements Checker.
func (a *Auditor) Check(ctx context.Context, target string) AuditResult {
	return a.Run(ctx, target)
}

// Name implements Checker.
func (a *Auditor) Name() string {
	return "audit"
}

// Run normalizes rawURL, fetches it, and folds every check into a result.
func (a *Auditor) Run(ctx context.Context, rawURL string) AuditResult {
	target := NormalizeTarget(rawURL)
	logger := a.logger().With(zap.String("target", target.URL))
	result := newAuditResult(target, a.now())

	fetched, err := a.fetcher().Fetch(ctx, target)
	if err != nil {
		kind := FailureConnection
		var ff *FetchFailure
		if errors.As(err, &ff) {
			kind = ff.Kind
		}
		result.Failure = kind
		result.Score = 0
		result.Recommendations = []string{"Request failed: " + kind.Label()}
		logger.Warn("fetch failed", zap.String("failure", string(kind)), zap.Error(err))
		metrics.ObserveAudit(true, 0)
		return result
	}
	logger.Debug("fetched",
		zap.Int("status", fetched.StatusCode),
		zap.String("final_url", fetched.FinalURL),
		zap.Int("redirects", fetched.Redirects),
	)

	card := NewScorecard()
	if !target.IsHTTPS() {
		card.Deduct(PenaltyNoHTTPS, recNoHTTPS)
	}

	headers := AnalyzeHeaders(fetched.Header)
	result.Headers = headers.Verdicts
	result.Leaks = headers.Leaks
	card.Apply(headers.Deductions)

	result.Cookies = ParseCookieFlags(fetched.SetCookies)
	card.Apply(CookieDeductions(result.Cookies, target.IsHTTPS()))

	if target.IsHTTPS() && target.Host != "" {
		probes := a.runProbes(ctx, target)

		result.HTTPS = probes.https
		if probes.tlsErr != nil {
			logger.Warn("tls probe failed", zap.Error(probes.tlsErr))
			metrics.ObserveProbeFailure("tls")
			card.Deduct(PenaltyTLSUnavailable, recTLSUnavailable)
		}

		result.Checks = append(result.Checks, probes.redirect)
		if probes.redirectErr != nil {
			logger.Warn("redirect probe failed", zap.Error(probes.redirectErr))
			metrics.ObserveProbeFailure("redirect")
		}
		if probes.redirect.Result == OutcomeFalse {
			card.Deduct(PenaltyNoRedirect, recNoRedirect)
		}
	}

	result.Score = card.Score()
	result.Recommendations = card.Recommendations()

	logger.Info("audit complete",
		zap.Int("score", result.Score),
		zap.Int("recommendations", len(result.Recommendations)),
	)
	metrics.ObserveAudit(false, result.Score)
	return result
}

type probeResults struct {
	https       HTTPSInfo
	tlsErr      error
	redirect    CheckOutcome
	redirectErr error
}

// runProbes runs the TLS inspector and the redirect verifier concurrently.
// Each goroutine writes disjoint fields; failures never cancel the sibling.
func (a *Auditor) runProbes(ctx context.Context, target AuditTarget) probeResults {
	var res probeResults
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		inspector := &TLSInspector{Timeout: a.timeout(), TLSConfig: a.TLSConfig}
		res.https, res.tlsErr = inspector.Inspect(gctx, target.Host, a.tlsPort(target))
		return nil
	})

	g.Go(func() error {
		httpPort := ""
		if a.HTTPPort > 0 {
			httpPort = strconv.Itoa(a.HTTPPort)
		}
		httpURL := target.WithScheme("http", httpPort)
		httpsURL := target.WithScheme("https", "")

		verifier := &RedirectVerifier{Config: a.clientConfig()}
		outcome, err := verifier.Verify(gctx, httpURL, httpsURL)
		res.redirect = CheckOutcome{Name: CheckHTTPToHTTPSRedirect, Result: outcome}
		if err != nil {
			res.redirect.Detail = err.Error()
			res.redirectErr = err
		}
		return nil
	})

	_ = g.Wait()
	return res
}

func (a *Auditor) fetcher() *Fetcher {
	return &Fetcher{Config: a.clientConfig()}
}

func (a *Auditor) clientConfig() ClientConfig {
	return ClientConfig{
		Timeout:   a.timeout(),
		TLSConfig: a.TLSConfig,
		Transport: a.Transport,
		UserAgent: a.UserAgent,
	}
}

func (a *Auditor) tlsPort(target AuditTarget) int {
	if a.TLSPort > 0 {
		return a.TLSPort
	}
	if p, err := strconv.Atoi(target.Port); err == nil && p > 0 {
		return p
	}
	return consts.DefaultTLSPort
}

func (a *Auditor) timeout() time.Duration {
	if a.Timeout <= 0 {
		return consts.DefaultTimeout
	}
	return a.Timeout
}

func (a *Auditor) logger() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}

func (a *Auditor) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}
