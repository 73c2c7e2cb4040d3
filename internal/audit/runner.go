package audit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/khanhnv2901/tlsprofiler/internal/probe"
)

// AuditFunc is called once per finished target, from the worker goroutine.
type AuditFunc func(outcome Outcome, duration time.Duration) error

// Runner audits many targets with a worker pool and a global rate limit.
type Runner struct {
	Store       ProfileLoader
	Collector   Collector
	Logger      *zap.Logger
	Concurrency int           // Maximum number of concurrent audits
	RateLimit   int           // Audits started per second (global)
	Timeout     time.Duration // Timeout for each audit
}

// RunAll loads the profile once and audits every target. Outcomes are
// returned in the order of targets. Only a profile error fails the whole
// batch; per-target errors are reported in the outcomes.
func (r *Runner) RunAll(ctx context.Context, targets []probe.Target, profileName string, auditFn AuditFunc) ([]Outcome, error) {
	p, err := r.Store.Load(ctx, profileName)
	if err != nil {
		return nil, err
	}

	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := rate.Inf
	if r.RateLimit > 0 {
		limit = rate.Limit(r.RateLimit)
	}
	limiter := rate.NewLimiter(limit, max(r.RateLimit, 1))

	sem := make(chan struct{}, max(r.Concurrency, 1))
	var wg sync.WaitGroup
	outcomes := make([]Outcome, len(targets))

	for i, target := range targets {
		wg.Add(1)
		go func(i int, t probe.Target) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			outcome := Outcome{Target: t.String()}
			start := time.Now()

			if err := limiter.Wait(ctx); err != nil {
				outcome.Err = err
			} else {
				auditCtx, cancel := r.auditContext(ctx)
				outcome.Result, outcome.Err = newAudit(t, p, r.Collector).Run(auditCtx)
				cancel()
			}

			duration := time.Since(start)
			logger.Info("Audit finished",
				zap.String("target", outcome.Target),
				zap.String("profile", p.Name),
				zap.String("status", outcome.Status()),
				zap.Duration("duration", duration))

			if auditFn != nil {
				if err := auditFn(outcome, duration); err != nil {
					logger.Warn("Audit callback failed", zap.String("target", outcome.Target), zap.Error(err))
				}
			}

			outcomes[i] = outcome
		}(i, target)
	}

	wg.Wait()
	return outcomes, nil
}

func (r *Runner) auditContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.Timeout)
}
