package blocks

import (
	"context"
	"fmt"

	"github.com/ErbaZZ/wusd-arb/config"

	"golang.org/x/time/rate"
)

// Throttle bounds how often a cycle may hit the node
type Throttle struct {
	limiter *rate.Limiter
	cfg     config.RateLimitConfig
}

func NewThrottle(cfg config.RateLimitConfig) *Throttle {
	return &Throttle{
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
		cfg:     cfg,
	}
}

// Wait blocks until a token is available or WaitTimeout elapses
func (t *Throttle) Wait(ctx context.Context) error {
	if t.cfg.WaitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.WaitTimeout)
		defer cancel()
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}
	return nil
}

// Allow takes a token without waiting
func (t *Throttle) Allow() bool {
	return t.limiter.Allow()
}
