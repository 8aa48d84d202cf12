// Package rate provides per-principal request limiting with a fixed
// time window. Counters live in memory; every instance enforces its
// own budget.
package rate

import (
	"context"
	"sync"
	"time"
)

// Result describes the outcome of a single admission check.
type Result struct {
	// Allowed reports whether the request fits in the current window.
	Allowed bool

	// Remaining is the budget left in the window after this check.
	Remaining int

	// RetryAfter is how long until the window resets. Only meaningful
	// when Allowed is false.
	RetryAfter time.Duration
}

// Limiter admits or rejects requests keyed by an arbitrary principal
// identifier.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

type window struct {
	start time.Time
	count int
}

// MemoryLimiter is a fixed-window Limiter backed by an in-process map.
// The first request for a key opens a window; subsequent requests within
// the window consume the budget; the first request after the window
// elapses opens a fresh one. A full budget followed by silence leaves a
// stale entry behind, which Sweep reclaims.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window

	limit    int
	interval time.Duration

	now func() time.Time // overridable in tests
}

// NewMemoryLimiter builds a limiter admitting limit requests per key per
// interval.
func NewMemoryLimiter(limit int, interval time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		windows:  make(map[string]*window),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

// Allow consumes one unit of key's budget. It never blocks.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.interval {
		l.windows[key] = &window{start: now, count: 1}
		return Result{Allowed: true, Remaining: l.limit - 1}, nil
	}

	if w.count >= l.limit {
		return Result{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: w.start.Add(l.interval).Sub(now),
		}, nil
	}

	w.count++
	return Result{Allowed: true, Remaining: l.limit - w.count}, nil
}

// Sweep drops windows that have already elapsed so idle keys do not
// accumulate. Meant to be called periodically from a background loop.
func (l *MemoryLimiter) Sweep() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, w := range l.windows {
		if now.Sub(w.start) >= l.interval {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}
