package blocks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ErbaZZ/wusd-arb/utils/metrics"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
)

// ErrMonitorStopped is returned by waits that outlive the monitor
var ErrMonitorStopped = errors.New("block monitor stopped")

// HeadSource is the subset of the node client the monitor needs
type HeadSource interface {
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)
}

type MonitorConfig struct {
	// ReconnectBackoff is the pause before re-subscribing after a failure
	ReconnectBackoff time.Duration
	// SeenHeadsCacheSize bounds the duplicate head filter
	SeenHeadsCacheSize int
}

// Monitor follows new chain heads. Duplicate heads (same hash) are dropped;
// when the consumer falls behind only the newest head is kept.
type Monitor struct {
	client  HeadSource
	cfg     MonitorConfig
	breaker *CircuitBreaker
	metrics *metrics.ChainMetrics
	logger  *zap.Logger

	seen  *lru.Cache
	heads chan *types.Header

	mu      sync.Mutex
	latest  *types.Header
	updated chan struct{} // closed and replaced on every new head
	stopped bool

	wg sync.WaitGroup
}

func NewMonitor(client HeadSource, cfg MonitorConfig, breaker *CircuitBreaker, m *metrics.ChainMetrics, logger *zap.Logger) (*Monitor, error) {
	if cfg.SeenHeadsCacheSize <= 0 {
		return nil, fmt.Errorf("seen heads cache size must be positive")
	}
	seen, err := lru.New(cfg.SeenHeadsCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create seen heads cache: %w", err)
	}

	return &Monitor{
		client:  client,
		cfg:     cfg,
		breaker: breaker,
		metrics: m,
		logger:  logger,
		seen:    seen,
		heads:   make(chan *types.Header, 1),
		updated: make(chan struct{}),
	}, nil
}

// Start subscribes in the background. The returned channel is closed once
// ctx is done and the monitor has stopped.
func (m *Monitor) Start(ctx context.Context) <-chan *types.Header {
	m.wg.Add(1)
	go m.run(ctx)
	return m.heads
}

// Wait blocks until the background loop has exited
func (m *Monitor) Wait() {
	m.wg.Wait()
}

// Latest returns the newest head seen, or nil before the first one
func (m *Monitor) Latest() *types.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest
}

// WaitForBlockAfter blocks until a head with a number greater than n arrives
func (m *Monitor) WaitForBlockAfter(ctx context.Context, n uint64) (*types.Header, error) {
	for {
		m.mu.Lock()
		latest, updated, stopped := m.latest, m.updated, m.stopped
		m.mu.Unlock()

		if latest != nil && latest.Number.Uint64() > n {
			return latest, nil
		}
		if stopped {
			return nil, ErrMonitorStopped
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-updated:
		}
	}
}

func (m *Monitor) run(ctx context.Context) {
	defer m.wg.Done()
	defer m.stop()

	for {
		err := m.follow(ctx)
		if ctx.Err() != nil {
			return
		}

		m.metrics.SubscriptionErrors.Inc()
		if m.breaker != nil {
			m.breaker.RecordError(err)
		}
		m.logger.Error("Head subscription failed, reconnecting",
			zap.Error(err),
			zap.Duration("backoff", m.cfg.ReconnectBackoff))

		select {
		case <-ctx.Done():
			return
		case <-time.After(m.cfg.ReconnectBackoff):
		}
	}
}

// follow runs one subscription until it fails or ctx is done
func (m *Monitor) follow(ctx context.Context) error {
	headers := make(chan *types.Header, 16)
	sub, err := m.client.SubscribeNewHead(ctx, headers)
	if err != nil {
		return fmt.Errorf("failed to subscribe to new heads: %w", err)
	}
	defer sub.Unsubscribe()

	m.logger.Info("Subscribed to new heads")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			if err == nil {
				err = errors.New("subscription closed")
			}
			return err
		case header := <-headers:
			m.handleHead(header)
		}
	}
}

func (m *Monitor) handleHead(header *types.Header) {
	if header == nil || header.Number == nil {
		return
	}
	if found, _ := m.seen.ContainsOrAdd(header.Hash(), struct{}{}); found {
		m.metrics.DuplicateHeads.Inc()
		return
	}

	m.metrics.BlocksSeen.Inc()
	m.metrics.LatestBlock.Set(float64(header.Number.Uint64()))

	m.mu.Lock()
	if m.latest == nil || header.Number.Cmp(m.latest.Number) >= 0 {
		m.latest = header
	}
	close(m.updated)
	m.updated = make(chan struct{})
	m.mu.Unlock()

	m.logger.Debug("New head",
		zap.Uint64("number", header.Number.Uint64()),
		zap.String("hash", header.Hash().Hex()))

	// keep only the newest head for a slow consumer
	select {
	case m.heads <- header:
	default:
		select {
		case <-m.heads:
		default:
		}
		m.heads <- header
	}
}

func (m *Monitor) stop() {
	m.mu.Lock()
	m.stopped = true
	close(m.updated)
	m.updated = make(chan struct{})
	m.mu.Unlock()

	close(m.heads)
}
