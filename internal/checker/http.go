package checker

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/khanhnv2901/webharden/internal/metrics"
	consts "github.com/khanhnv2901/webharden/internal/shared/constants"
	sharederrors "github.com/khanhnv2901/webharden/internal/shared/errors"
)

// ClientConfig holds the settings shared by the fetcher and the redirect probe.
type ClientConfig struct {
	Timeout   time.Duration
	TLSConfig *tls.Config       // optional base config, e.g. private root CAs
	Transport http.RoundTripper // optional; defaults to an instrumented transport
	UserAgent string
}

// newProbeClient returns a client that follows redirects up to MaxRedirects.
func newProbeClient(cfg ClientConfig) *http.Client {
	rt := cfg.Transport
	if rt == nil {
		rt = metrics.InstrumentTransport(&http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: cloneTLSConfig(cfg.TLSConfig),
			DialContext: (&net.Dialer{
				Timeout:   cfg.Timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: cfg.Timeout,
			ForceAttemptHTTP2:   true,
		})
	}

	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: rt,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= consts.MaxRedirects {
				return fmt.Errorf("%w: stopped after %d", sharederrors.ErrTooManyRedirects, len(via))
			}
			return nil
		},
	}
}

func cloneTLSConfig(cfg *tls.Config) *tls.Config {
	if cfg == nil {
		return &tls.Config{MinVersion: tls.VersionTLS10}
	}
	return cfg.Clone()
}

func userAgentOrDefault(ua string) string {
	if ua == "" {
		return consts.UserAgent
	}
	return ua
}

// redirectCount walks the response history the client recorded while
// following redirects.
func redirectCount(resp *http.Response) int {
	n := 0
	for req := resp.Request; req != nil && req.Response != nil; req = req.Response.Request {
		n++
	}
	return n
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, consts.BodyDrainLimitBytes))
	_ = body.Close()
}

// FetchedResponse is the terminal response of the primary fetch.
type FetchedResponse struct {
	StatusCode int
	Header     http.Header
	SetCookies []string
	FinalURL   string
	Redirects  int
}

// Fetcher issues the single primary GET of an audit.
type Fetcher struct {
	Config ClientConfig
}

// Fetch requests the target, following redirects to completion. Any failure
// is returned as a *FetchFailure.
func (f *Fetcher) Fetch(ctx context.Context, target AuditTarget) (*FetchedResponse, error) {
	if target.Host == "" {
		return nil, &FetchFailure{Kind: FailureInvalidURL, URL: target.URL, Err: sharederrors.ErrNoHost}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.URL, nil)
	if err != nil {
		return nil, &FetchFailure{
			Kind: FailureInvalidURL,
			URL:  target.URL,
			Err:  fmt.Errorf("%w: %v", sharederrors.ErrInvalidTarget, err),
		}
	}
	req.Header.Set("User-Agent", userAgentOrDefault(f.Config.UserAgent))

	resp, err := newProbeClient(f.Config).Do(req)
	if err != nil {
		return nil, &FetchFailure{Kind: ClassifyFetchError(err), URL: target.URL, Err: err}
	}
	defer drainAndClose(resp.Body)

	return &FetchedResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		SetCookies: resp.Header.Values("Set-Cookie"),
		FinalURL:   resp.Request.URL.String(),
		Redirects:  redirectCount(resp),
	}, nil
}
