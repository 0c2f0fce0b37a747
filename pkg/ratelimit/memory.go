package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type entry struct {
	limiter  *rate.Limiter
	interval time.Duration
}

// MemoryStore keeps one token bucket of burst 1 per automation. It is only
// correct for a single process.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*entry)}
}

func (s *MemoryStore) Allow(_ context.Context, key string, interval time.Duration, now time.Time) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.interval != interval {
		e = &entry{limiter: rate.NewLimiter(rate.Every(interval), 1), interval: interval}
		s.entries[key] = e
	}

	if e.limiter.AllowN(now, 1) {
		return Decision{Allowed: true}, nil
	}

	missing := 1 - e.limiter.TokensAt(now)

	return Decision{Allowed: false, RetryAfter: time.Duration(missing * float64(interval))}, nil
}
