package session

import (
	"context"
	"time"
)

// DefaultSweepInterval is how often StartSweeper checks for idle sessions.
const DefaultSweepInterval = 5 * time.Minute

// StartSweeper runs a background goroutine that periodically evicts idle
// sessions from memory. Evicted sessions stay rehydratable from the store.
func StartSweeper(ctx context.Context, r *Registry, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		r.logger.Info("Session sweeper started", "interval", interval, "ttl", r.ttl)

		for {
			select {
			case <-ticker.C:
				if n := r.Sweep(ctx); n > 0 {
					r.logger.Info("Session sweeper evicted idle sessions", "count", n, "remaining", r.Len())
				}
			case <-ctx.Done():
				r.logger.Info("Session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
