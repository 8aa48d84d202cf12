package service

import (
	"context"
	"time"

	"github.com/bookery-social/bookery/internal/rate"
	"github.com/bookery-social/bookery/pkg/slogx"
)

// Housekeeper periodically reclaims elapsed rate windows so the in-memory
// limiter map stays bounded by the set of recently active users.
type Housekeeper struct {
	limiter  *rate.MemoryLimiter
	interval time.Duration
}

func NewHousekeeper(limiter *rate.MemoryLimiter, interval time.Duration) *Housekeeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Housekeeper{limiter: limiter, interval: interval}
}

// Run sweeps until ctx is cancelled. Intended to run in its own goroutine.
func (h *Housekeeper) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := h.limiter.Sweep(); removed > 0 {
				slogx.FromContext(ctx).Debug("swept rate windows", "removed", removed)
			}
		}
	}
}
