package simulator

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// ErrPreflightFailed is returned when the node reports the call would revert
var ErrPreflightFailed = errors.New("preflight simulation failed")

// Backend is the subset of the node client used for simulation
type Backend interface {
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// SimulationResult represents the result of a transaction simulation
type SimulationResult struct {
	Success bool
	GasUsed uint64
	Error   error
}

// Simulator handles transaction simulation
type Simulator struct {
	backend Backend
}

// NewSimulator creates a new transaction simulator
func NewSimulator(backend Backend) *Simulator {
	return &Simulator{
		backend: backend,
	}
}

// Simulate dry-runs a contract call from the given account. A revert is
// reported in the result, not as an error; errors are reserved for the
// simulation itself failing.
func (s *Simulator) Simulate(ctx context.Context, from, to common.Address, data []byte, gasLimit uint64, gasPrice *big.Int) (*SimulationResult, error) {
	msg := ethereum.CallMsg{
		From:     from,
		To:       &to,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Value:    big.NewInt(0),
		Data:     data,
	}

	gasUsed, err := s.backend.EstimateGas(ctx, msg)
	if err != nil {
		return &SimulationResult{
			Success: false,
			Error:   err,
		}, nil
	}

	// Try executing the call
	if _, err := s.backend.CallContract(ctx, msg, nil); err != nil {
		return &SimulationResult{
			Success: false,
			Error:   err,
			GasUsed: gasUsed,
		}, nil
	}

	return &SimulationResult{
		Success: true,
		GasUsed: gasUsed,
	}, nil
}

// Preflight simulates the call and fails with ErrPreflightFailed when it
// would revert or needs more gas than the limit.
func (s *Simulator) Preflight(ctx context.Context, from, to common.Address, data []byte, gasLimit uint64, gasPrice *big.Int) (uint64, error) {
	result, err := s.Simulate(ctx, from, to, data, gasLimit, gasPrice)
	if err != nil {
		return 0, err
	}
	if !result.Success {
		return result.GasUsed, fmt.Errorf("%w: %v", ErrPreflightFailed, result.Error)
	}
	if gasLimit > 0 && result.GasUsed > gasLimit {
		return result.GasUsed, fmt.Errorf("%w: needs %d gas, limit is %d", ErrPreflightFailed, result.GasUsed, gasLimit)
	}
	return result.GasUsed, nil
}
