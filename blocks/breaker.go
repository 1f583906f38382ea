package blocks

import (
	"sync"
	"time"

	"github.com/ErbaZZ/wusd-arb/config"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// CircuitBreaker stops the bot from hammering a failing node. It trips after
// ErrorThreshold errors within one ResetInterval and stays open for
// CooldownPeriod.
type CircuitBreaker struct {
	config *config.CircuitBreakerConfig
	logger *zap.Logger
	trips  prometheus.Counter
	now    func() time.Time

	mu          sync.Mutex
	errorCount  int
	lastReset   time.Time
	lastTripped time.Time
	tripped     bool
}

// NewCircuitBreaker creates a breaker; trips may be nil
func NewCircuitBreaker(cfg *config.CircuitBreakerConfig, trips prometheus.Counter, logger *zap.Logger) *CircuitBreaker {
	return newCircuitBreaker(cfg, trips, logger, time.Now)
}

func newCircuitBreaker(cfg *config.CircuitBreakerConfig, trips prometheus.Counter, logger *zap.Logger, now func() time.Time) *CircuitBreaker {
	return &CircuitBreaker{
		config:    cfg,
		logger:    logger,
		trips:     trips,
		now:       now,
		lastReset: now(),
	}
}

// RecordError counts err and reports whether this call tripped the breaker
func (cb *CircuitBreaker) RecordError(err error) bool {
	if !cb.config.Enabled {
		return false
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.refresh()
	if cb.tripped {
		return false
	}

	cb.errorCount++
	if cb.errorCount < cb.config.ErrorThreshold {
		return false
	}

	cb.tripped = true
	cb.lastTripped = cb.now()
	if cb.trips != nil {
		cb.trips.Inc()
	}

	cb.logger.Warn("Circuit breaker tripped",
		zap.Int("error_count", cb.errorCount),
		zap.Duration("cooldown", cb.config.CooldownPeriod),
		zap.Error(err))

	return true
}

func (cb *CircuitBreaker) IsHealthy() bool {
	if !cb.config.Enabled {
		return true
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.refresh()
	return !cb.tripped
}

// refresh resets the error window and closes the breaker after the cooldown.
// Callers hold mu.
func (cb *CircuitBreaker) refresh() {
	now := cb.now()

	if now.Sub(cb.lastReset) >= cb.config.ResetInterval {
		cb.errorCount = 0
		cb.lastReset = now
	}

	if cb.tripped && now.Sub(cb.lastTripped) >= cb.config.CooldownPeriod {
		cb.tripped = false
		cb.errorCount = 0
		cb.lastReset = now
		cb.logger.Info("Circuit breaker reset",
			zap.Duration("cooldown_period", cb.config.CooldownPeriod))
	}
}
