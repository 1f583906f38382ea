package gas

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Backend is the subset of the node client the estimator needs
type Backend interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// Estimator provides gas price estimation and tracking
type Estimator struct {
	backend Backend
	logger  *zap.Logger
	bump    *big.Int

	mu        sync.RWMutex
	lastPrice *big.Int
}

// NewEstimator creates a gas estimator that adds bump wei on top of the
// node's suggestion so our transactions are not priced at the floor.
func NewEstimator(backend Backend, bump *big.Int, logger *zap.Logger) *Estimator {
	if bump == nil {
		bump = new(big.Int)
	}
	return &Estimator{
		backend: backend,
		logger:  logger,
		bump:    new(big.Int).Set(bump),
	}
}

// GasPrice returns the suggested gas price plus the configured bump
func (e *Estimator) GasPrice(ctx context.Context) (*big.Int, error) {
	suggested, err := e.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}

	price := new(big.Int).Add(suggested, e.bump)

	e.mu.Lock()
	e.lastPrice = price
	e.mu.Unlock()

	e.logger.Debug("Gas price updated",
		zap.String("suggested", suggested.String()),
		zap.String("price", price.String()))

	return new(big.Int).Set(price), nil
}

// Nonce returns the next pending nonce of the account
func (e *Estimator) Nonce(ctx context.Context, account common.Address) (uint64, error) {
	nonce, err := e.backend.PendingNonceAt(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("failed to get nonce for %s: %w", account.Hex(), err)
	}
	return nonce, nil
}

// LastPrice returns the most recently fetched gas price, or nil before the
// first fetch.
func (e *Estimator) LastPrice() *big.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.lastPrice == nil {
		return nil
	}
	return new(big.Int).Set(e.lastPrice)
}

// EstimateGasCost estimates the cost in wei of a transaction with the given
// gas limit at the last fetched price.
func (e *Estimator) EstimateGasCost(gasLimit uint64) (*big.Int, error) {
	price := e.LastPrice()
	if price == nil {
		return nil, fmt.Errorf("no gas price fetched yet")
	}
	return new(big.Int).Mul(price, new(big.Int).SetUint64(gasLimit)), nil
}
