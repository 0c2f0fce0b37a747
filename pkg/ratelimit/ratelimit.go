// Package ratelimit enforces the minimum interval between two runs of the same
// automation.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/flowbase/pkg/log"
)

// Decision is the outcome of a rate limit check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Reason is the human readable explanation of a denied decision.
func (d Decision) Reason() string {
	if d.Allowed {
		return ""
	}

	return fmt.Sprintf("Rate limited: retry in %s", d.RetryAfter.Round(time.Second))
}

// Store records runs and answers whether a new run is allowed. An allowed
// decision counts as a run.
type Store interface {
	Allow(ctx context.Context, key string, interval time.Duration, now time.Time) (Decision, error)
}

// DefaultTolerance absorbs scheduler jitter: a run arriving this much before
// the interval elapsed is still allowed.
const DefaultTolerance = time.Second

// Limiter applies per-automation intervals on top of a Store. Default is used
// for automations without their own interval; zero disables limiting.
type Limiter struct {
	store     Store
	Default   time.Duration
	Tolerance time.Duration
	logger    *slog.Logger
}

func NewLimiter(store Store, defaultInterval time.Duration, logger *slog.Logger) *Limiter {
	return &Limiter{
		store:     store,
		Default:   defaultInterval,
		Tolerance: DefaultTolerance,
		logger:    log.Module(logger, "rate_limiter"),
	}
}

// Allow checks and records a run under key, usually the automation id. Store
// failures let the run through.
func (l *Limiter) Allow(ctx context.Context, key string, interval time.Duration, now time.Time) Decision {
	if interval <= 0 {
		interval = l.Default
	}

	if interval <= 0 || l.store == nil {
		return Decision{Allowed: true}
	}

	if l.Tolerance > 0 && interval > l.Tolerance {
		interval -= l.Tolerance
	}

	decision, err := l.store.Allow(ctx, key, interval, now)
	if err != nil {
		l.logger.WarnContext(ctx, "Rate limit store failed, allowing run", "key", key, "error", err)

		return Decision{Allowed: true}
	}

	if !decision.Allowed {
		l.logger.InfoContext(ctx, "Automation rate limited",
			"key", key,
			"interval", interval,
			"retry_after", decision.RetryAfter,
		)
	}

	return decision
}
