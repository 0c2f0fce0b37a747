package cmd

import (
	"context"
	"fmt"

	"github.com/dukex/flowbase/pkg/ratelimit"
)

// NewRateLimitStore returns a Redis store for redis:// and rediss:// URLs so
// that replicas share intervals, and a process-local store otherwise.
func NewRateLimitStore(ctx context.Context, url string) (ratelimit.Store, func() error, error) {
	switch parseProvider(url) {
	case "redis", "rediss":
		s, err := ratelimit.NewRedisStoreFromURL(ctx, url)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Redis rate limit store: %w", err)
		}

		return s, s.Close, nil
	default:
		return ratelimit.NewMemoryStore(), func() error { return nil }, nil
	}
}
