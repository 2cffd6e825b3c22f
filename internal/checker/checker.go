package checker

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Checker is the interface the batch runner drives.
type Checker interface {
	// Check audits a single target
	Check(ctx context.Context, target string) AuditResult

	// Name returns the name of this checker
	Name() string
}

// AuditFunc is a callback invoked after each target completes
type AuditFunc func(target string, result AuditResult, duration time.Duration) error

// Runner audits many targets with bounded concurrency and a global rate limit.
// Every target is still audited by one linear pipeline.
type Runner struct {
	Concurrency int           // Maximum number of concurrent audits
	RateLimit   int           // Audits started per second (global); <= 0 disables limiting
	Timeout     time.Duration // Upper bound for each whole audit; zero disables it
}

// RunAudits executes checks against targets using a worker pool. Results are
// returned in target order.
func (r *Runner) RunAudits(ctx context.Context, targets []string, checker Checker, auditFn AuditFunc) []AuditResult {
	concurrency := r.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	var limiter *rate.Limiter
	if r.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.RateLimit), r.RateLimit)
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	results := make([]AuditResult, len(targets))

	for i, target := range targets {
		wg.Add(1)
		go func(i int, t string) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			if limiter != nil {
				_ = limiter.Wait(ctx)
			}

			start := time.Now()

			checkCtx := ctx
			if r.Timeout > 0 {
				var cancel context.CancelFunc
				checkCtx, cancel = context.WithTimeout(ctx, r.Timeout)
				defer cancel()
			}

			result := checker.Check(checkCtx, t)

			if auditFn != nil {
				_ = auditFn(t, result, time.Since(start))
			}

			results[i] = result
		}(i, target)
	}

	wg.Wait()
	return results
}
