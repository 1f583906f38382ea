package executor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ErbaZZ/wusd-arb/dex/uniswap"
	"github.com/ErbaZZ/wusd-arb/state"
	arbtypes "github.com/ErbaZZ/wusd-arb/types"
	"github.com/ErbaZZ/wusd-arb/utils"
	"github.com/ErbaZZ/wusd-arb/utils/metrics"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

var (
	ErrBusy     = errors.New("executor busy")
	ErrReverted = errors.New("transaction reverted")
)

// ArbContract is the on-chain arbitrage entry point
type ArbContract interface {
	Address() common.Address
	SwapAndRedeem(opts *bind.TransactOpts, amount, minIntermediate *big.Int) (*types.Transaction, error)
	Claim(opts *bind.TransactOpts, minAmountOut *big.Int) (*types.Transaction, error)
	PackSwapAndRedeem(amount, minIntermediate *big.Int) ([]byte, error)
}

type ReceiptWaiter interface {
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

type BlockWaiter interface {
	WaitForBlockAfter(ctx context.Context, n uint64) (*types.Header, error)
}

type BalanceReader interface {
	BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error)
}

type Preflighter interface {
	Preflight(ctx context.Context, from, to common.Address, data []byte, gasLimit uint64, gasPrice *big.Int) (uint64, error)
}

type Config struct {
	InputToken    common.Address
	SlippageBps   uint64
	GasLimit      uint64
	ClaimGasPrice *big.Int
	Preflight     bool
	// ConfirmTimeout bounds the whole swap, wait and claim sequence
	ConfirmTimeout time.Duration
	AssetDecimals  int32
}

// Result of one executed cycle
type Result struct {
	SwapTx   common.Hash
	ClaimTx  common.Hash
	Realized *utils.RealizedProfit
	// Bad is set when the wallet balance dropped
	Bad      bool
	Duration time.Duration
}

type Executor struct {
	cfg      Config
	opts     *bind.TransactOpts
	contract ArbContract
	receipts ReceiptWaiter
	blocks   BlockWaiter
	balances BalanceReader
	gas      state.GasOracle
	sim      Preflighter
	metrics  *metrics.ExecutionMetrics
	logger   *zap.Logger

	mu    sync.Mutex
	state State
}

// NewExecutor creates an executor. sim may be nil when preflight is off.
func NewExecutor(cfg Config, opts *bind.TransactOpts, contract ArbContract, receipts ReceiptWaiter, blocks BlockWaiter,
	balances BalanceReader, gas state.GasOracle, sim Preflighter, m *metrics.ExecutionMetrics, logger *zap.Logger) (*Executor, error) {
	if opts == nil || opts.Signer == nil {
		return nil, errors.New("executor needs signing options")
	}
	if cfg.SlippageBps == 0 || cfg.SlippageBps > uniswap.BasisPoints {
		return nil, fmt.Errorf("slippage must be in (0, %d] bps", uniswap.BasisPoints)
	}
	if cfg.Preflight && sim == nil {
		return nil, errors.New("preflight enabled without a simulator")
	}

	return &Executor{
		cfg:      cfg,
		opts:     opts,
		contract: contract,
		receipts: receipts,
		blocks:   blocks,
		balances: balances,
		gas:      gas,
		sim:      sim,
		metrics:  m,
		logger:   logger,
	}, nil
}

func (e *Executor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Executor) Busy() bool {
	return e.State() != Idle
}

// TryBegin reserves the executor for one cycle
func (e *Executor) TryBegin() bool {
	return e.transition(Idle, Submitting)
}

func (e *Executor) transition(from, to State) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != from {
		return false
	}
	e.setStateLocked(to)
	return true
}

func (e *Executor) setState(s State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setStateLocked(s)
}

func (e *Executor) setStateLocked(s State) {
	e.state = s
	e.metrics.State.Set(float64(s))
}

// MinIntermediate is the slippage-adjusted minimum the mint leg must return
func (e *Executor) MinIntermediate(intermediate *big.Int) *big.Int {
	minOut := new(big.Int).Mul(intermediate, new(big.Int).SetUint64(e.cfg.SlippageBps))
	return minOut.Quo(minOut, big.NewInt(uniswap.BasisPoints))
}

// Execute runs swapAndRedeem then claim for quote. The caller must have won
// TryBegin; the executor is back to Idle when Execute returns. A claim
// failure after a mined swap returns the partial result with the error.
func (e *Executor) Execute(ctx context.Context, cycle *state.Cycle, quote *arbtypes.ProfitQuote) (*Result, error) {
	if s := e.State(); s != Submitting {
		return nil, fmt.Errorf("execute called in state %s", s)
	}
	defer e.setState(Idle)

	start := time.Now()
	if e.cfg.ConfirmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.ConfirmTimeout)
		defer cancel()
	}

	result, err := e.execute(ctx, cycle, quote)
	if result != nil {
		result.Duration = time.Since(start)
	}
	e.record(result, err)
	return result, err
}

func (e *Executor) execute(ctx context.Context, cycle *state.Cycle, quote *arbtypes.ProfitQuote) (*Result, error) {
	minIntermediate := e.MinIntermediate(quote.IntermediateAmount)

	if e.cfg.Preflight {
		data, err := e.contract.PackSwapAndRedeem(quote.Amount, minIntermediate)
		if err != nil {
			return nil, fmt.Errorf("failed to pack swap: %w", err)
		}
		if _, err := e.sim.Preflight(ctx, e.opts.From, e.contract.Address(), data, e.cfg.GasLimit, cycle.GasPrice); err != nil {
			return nil, err
		}
	}

	swapTx, err := e.contract.SwapAndRedeem(e.txOpts(ctx, cycle.Nonce, cycle.GasPrice), quote.Amount, minIntermediate)
	if err != nil {
		return nil, fmt.Errorf("failed to send swap: %w", err)
	}
	result := &Result{SwapTx: swapTx.Hash()}

	e.logger.Info("Swap submitted",
		zap.String("tx", swapTx.Hash().Hex()),
		zap.Uint64("nonce", cycle.Nonce),
		zap.String("amount", quote.Amount.String()),
		zap.String("minIntermediate", minIntermediate.String()))

	e.setState(AwaitingConfirmation)
	receipt, err := e.waitSuccess(ctx, swapTx)
	if err != nil {
		return result, fmt.Errorf("swap %s: %w", swapTx.Hash().Hex(), err)
	}

	// the reward leg is claimable from the next block on
	if _, err := e.blocks.WaitForBlockAfter(ctx, receipt.BlockNumber.Uint64()); err != nil {
		return result, fmt.Errorf("failed waiting for block after %d: %w", receipt.BlockNumber.Uint64(), err)
	}

	e.setState(Claiming)
	claimTx, err := e.contract.Claim(e.txOpts(ctx, cycle.Nonce+1, cycle.GasPrice), big.NewInt(0))
	if err != nil {
		return result, fmt.Errorf("failed to send claim: %w", err)
	}
	result.ClaimTx = claimTx.Hash()

	e.logger.Info("Claim submitted",
		zap.String("tx", claimTx.Hash().Hex()),
		zap.Uint64("nonce", cycle.Nonce+1))

	if _, err := e.waitSuccess(ctx, claimTx); err != nil {
		return result, fmt.Errorf("claim %s: %w", claimTx.Hash().Hex(), err)
	}

	after, err := e.balances.BalanceOf(ctx, e.cfg.InputToken, e.opts.From)
	if err != nil {
		return result, fmt.Errorf("failed to read balance after claim: %w", err)
	}
	realized, err := utils.CalculateRealizedProfit(cycle.Snapshot.Balance, after, quote.Amount)
	if err != nil {
		return result, err
	}
	result.Realized = realized
	result.Bad = realized.Loss

	return result, nil
}

// Claim sends a single claim with the configured claim gas price, falling
// back to the node's price when none is configured.
func (e *Executor) Claim(ctx context.Context) (common.Hash, error) {
	if !e.transition(Idle, Claiming) {
		return common.Hash{}, ErrBusy
	}
	defer e.setState(Idle)

	if e.cfg.ConfirmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.ConfirmTimeout)
		defer cancel()
	}

	gasPrice := e.cfg.ClaimGasPrice
	if gasPrice == nil || gasPrice.Sign() == 0 {
		price, err := e.gas.GasPrice(ctx)
		if err != nil {
			return common.Hash{}, err
		}
		gasPrice = price
	}
	nonce, err := e.gas.Nonce(ctx, e.opts.From)
	if err != nil {
		return common.Hash{}, err
	}

	tx, err := e.contract.Claim(e.txOpts(ctx, nonce, gasPrice), big.NewInt(0))
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to send claim: %w", err)
	}

	e.logger.Info("Claim submitted",
		zap.String("tx", tx.Hash().Hex()),
		zap.Uint64("nonce", nonce),
		zap.String("gasPrice", gasPrice.String()))

	if _, err := e.waitSuccess(ctx, tx); err != nil {
		return tx.Hash(), fmt.Errorf("claim %s: %w", tx.Hash().Hex(), err)
	}
	return tx.Hash(), nil
}

func (e *Executor) txOpts(ctx context.Context, nonce uint64, gasPrice *big.Int) *bind.TransactOpts {
	return &bind.TransactOpts{
		From:     e.opts.From,
		Signer:   e.opts.Signer,
		Nonce:    new(big.Int).SetUint64(nonce),
		GasPrice: gasPrice,
		GasLimit: e.cfg.GasLimit,
		Context:  ctx,
	}
}

func (e *Executor) waitSuccess(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := e.receipts.WaitMined(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("failed waiting for receipt: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, ErrReverted
	}
	return receipt, nil
}

func (e *Executor) record(result *Result, err error) {
	switch {
	case err != nil:
		e.metrics.Executions.WithLabelValues("failed").Inc()
		return
	case result.Bad:
		e.metrics.Executions.WithLabelValues("bad").Inc()
	default:
		e.metrics.Executions.WithLabelValues("success").Inc()
		profit, _ := utils.ToDecimal(result.Realized.Profit, e.cfg.AssetDecimals).Float64()
		if profit > 0 {
			e.metrics.RealizedProfit.Add(profit)
		}
	}
	e.metrics.Duration.Observe(result.Duration.Seconds())
}
