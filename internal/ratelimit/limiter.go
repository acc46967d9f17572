// Package ratelimit paces destination writes with a token bucket.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/knowledge-sync/internal/ingest"
)

// Config holds rate limiter configuration.
type Config struct {
	// PerSecond <= 0 disables pacing.
	PerSecond float64
	Burst     int
}

// Creator wraps a RecordCreator so calls never exceed the configured rate.
type Creator struct {
	next    ingest.RecordCreator
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewCreator wraps next.
func NewCreator(next ingest.RecordCreator, cfg Config, logger *zap.Logger) *Creator {
	limit := rate.Limit(cfg.PerSecond)
	if cfg.PerSecond <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Creator{
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

// CreateRecord waits for a token, then delegates.
func (c *Creator) CreateRecord(ctx context.Context, record ingest.Record) (string, error) {
	start := time.Now()
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		c.logger.Debug("write paced", zap.Duration("delay", waited))
	}
	return c.next.CreateRecord(ctx, record)
}
