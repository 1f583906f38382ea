package executor

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ErbaZZ/wusd-arb/state"
	arbtypes "github.com/ErbaZZ/wusd-arb/types"
	"github.com/ErbaZZ/wusd-arb/utils/metrics"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testKey = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

var (
	arbAddress = common.HexToAddress("0x00000000000000000000000000000000000000a4")
	usdc       = common.HexToAddress("0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174")
)

type sent struct {
	method   string
	nonce    uint64
	gasPrice *big.Int
	gasLimit uint64
	args     []*big.Int
}

type fakeContract struct {
	mu       sync.Mutex
	sent     []sent
	swapErr  error
	claimErr error
}

func (f *fakeContract) Address() common.Address { return arbAddress }

func (f *fakeContract) send(method string, opts *bind.TransactOpts, args ...*big.Int) *types.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{
		method:   method,
		nonce:    opts.Nonce.Uint64(),
		gasPrice: opts.GasPrice,
		gasLimit: opts.GasLimit,
		args:     args,
	})
	return types.NewTransaction(opts.Nonce.Uint64(), arbAddress, big.NewInt(0), opts.GasLimit, opts.GasPrice, []byte(method))
}

func (f *fakeContract) SwapAndRedeem(opts *bind.TransactOpts, amount, minIntermediate *big.Int) (*types.Transaction, error) {
	if f.swapErr != nil {
		return nil, f.swapErr
	}
	return f.send("swapAndRedeem", opts, amount, minIntermediate), nil
}

func (f *fakeContract) Claim(opts *bind.TransactOpts, minAmountOut *big.Int) (*types.Transaction, error) {
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	return f.send("claim", opts, minAmountOut), nil
}

func (f *fakeContract) PackSwapAndRedeem(amount, minIntermediate *big.Int) ([]byte, error) {
	return []byte("packed"), nil
}

// fakeReceipts mines every transaction in block 100
type fakeReceipts struct {
	reverted map[string]bool // by calldata
}

func (f *fakeReceipts) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	status := types.ReceiptStatusSuccessful
	if f.reverted[string(tx.Data())] {
		status = types.ReceiptStatusFailed
	}
	return &types.Receipt{Status: status, TxHash: tx.Hash(), BlockNumber: big.NewInt(100)}, nil
}

type fakeBlocks struct {
	waitedAfter []uint64
}

func (f *fakeBlocks) WaitForBlockAfter(ctx context.Context, n uint64) (*types.Header, error) {
	f.waitedAfter = append(f.waitedAfter, n)
	return &types.Header{Number: new(big.Int).SetUint64(n + 1)}, nil
}

type fakeBalances struct {
	after *big.Int
}

func (f *fakeBalances) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	return f.after, nil
}

type fakeGas struct{}

func (fakeGas) GasPrice(ctx context.Context) (*big.Int, error) { return big.NewInt(31), nil }

func (fakeGas) Nonce(ctx context.Context, account common.Address) (uint64, error) { return 40, nil }

type fakeSim struct {
	called int
	err    error
}

func (f *fakeSim) Preflight(ctx context.Context, from, to common.Address, data []byte, gasLimit uint64, gasPrice *big.Int) (uint64, error) {
	f.called++
	return 300_000, f.err
}

type harness struct {
	exec     *Executor
	contract *fakeContract
	receipts *fakeReceipts
	blocks   *fakeBlocks
	balances *fakeBalances
	sim      *fakeSim
	metrics  *metrics.ExecutionMetrics
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()

	opts, _, err := NewTransactor(testKey, big.NewInt(137))
	require.NoError(t, err)

	cfg := Config{
		InputToken:     usdc,
		SlippageBps:    9900,
		GasLimit:       700_000,
		ClaimGasPrice:  big.NewInt(50),
		Preflight:      true,
		ConfirmTimeout: time.Minute,
		AssetDecimals:  6,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	h := &harness{
		contract: &fakeContract{},
		receipts: &fakeReceipts{reverted: map[string]bool{}},
		blocks:   &fakeBlocks{},
		balances: &fakeBalances{after: big.NewInt(1_003_000_000)},
		sim:      &fakeSim{},
		metrics:  metrics.NewExecutionMetrics("test", prometheus.NewRegistry()),
	}
	h.exec, err = NewExecutor(cfg, opts, h.contract, h.receipts, h.blocks, h.balances, fakeGas{}, h.sim, h.metrics, zaptest.NewLogger(t))
	require.NoError(t, err)
	return h
}

func testCycle() (*state.Cycle, *arbtypes.ProfitQuote) {
	cycle := &state.Cycle{
		Snapshot: &arbtypes.Snapshot{BlockNumber: 99, Balance: big.NewInt(1_000_000_000)},
		GasPrice: big.NewInt(30_000_000_002),
		Nonce:    12,
	}
	quote := &arbtypes.ProfitQuote{
		Amount:             big.NewInt(500_000_000),
		IntermediateAmount: big.NewInt(600_000_000),
		RedeemAmount:       big.NewInt(503_000_000),
		Profit:             big.NewInt(3_000_000),
	}
	return cycle, quote
}

func TestExecuteSuccess(t *testing.T) {
	h := newHarness(t, nil)
	cycle, quote := testCycle()

	require.True(t, h.exec.TryBegin())
	assert.Equal(t, Submitting, h.exec.State())
	assert.False(t, h.exec.TryBegin())

	result, err := h.exec.Execute(context.Background(), cycle, quote)
	require.NoError(t, err)

	require.Len(t, h.contract.sent, 2)
	swap, claim := h.contract.sent[0], h.contract.sent[1]
	assert.Equal(t, "swapAndRedeem", swap.method)
	assert.Equal(t, uint64(12), swap.nonce)
	assert.Equal(t, "30000000002", swap.gasPrice.String())
	assert.Equal(t, uint64(700_000), swap.gasLimit)
	assert.Equal(t, int64(500_000_000), swap.args[0].Int64())
	assert.Equal(t, int64(594_000_000), swap.args[1].Int64())

	assert.Equal(t, "claim", claim.method)
	assert.Equal(t, uint64(13), claim.nonce)
	assert.Equal(t, "30000000002", claim.gasPrice.String())
	assert.Zero(t, claim.args[0].Sign())

	assert.Equal(t, []uint64{100}, h.blocks.waitedAfter)
	assert.Equal(t, 1, h.sim.called)

	assert.NotEqual(t, common.Hash{}, result.SwapTx)
	assert.NotEqual(t, common.Hash{}, result.ClaimTx)
	assert.False(t, result.Bad)
	assert.Equal(t, int64(3_000_000), result.Realized.Profit.Int64())
	assert.True(t, result.Realized.Percent.Equal(decimal.RequireFromString("0.6")))

	assert.Equal(t, Idle, h.exec.State())
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.Executions.WithLabelValues("success")))
	assert.Equal(t, float64(3), testutil.ToFloat64(h.metrics.RealizedProfit))
	assert.Zero(t, testutil.ToFloat64(h.metrics.State))
}

func TestExecuteBadTrade(t *testing.T) {
	h := newHarness(t, nil)
	h.balances.after = big.NewInt(999_000_000)
	cycle, quote := testCycle()

	require.True(t, h.exec.TryBegin())
	result, err := h.exec.Execute(context.Background(), cycle, quote)
	require.NoError(t, err)

	assert.True(t, result.Bad)
	assert.Equal(t, int64(-1_000_000), result.Realized.Profit.Int64())
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.Executions.WithLabelValues("bad")))
	assert.Zero(t, testutil.ToFloat64(h.metrics.RealizedProfit))
}

func TestExecuteFailures(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(h *harness)
		wantSent  int
		wantSwap  bool
		wantClaim bool
	}{
		{"preflight fails", func(h *harness) { h.sim.err = errors.New("execution reverted") }, 0, false, false},
		{"swap send fails", func(h *harness) { h.contract.swapErr = errors.New("nonce too low") }, 0, false, false},
		{"swap reverts", func(h *harness) { h.receipts.reverted["swapAndRedeem"] = true }, 1, true, false},
		{"claim send fails", func(h *harness) { h.contract.claimErr = errors.New("underpriced") }, 1, true, false},
		{"claim reverts", func(h *harness) { h.receipts.reverted["claim"] = true }, 2, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			tt.setup(h)
			cycle, quote := testCycle()

			require.True(t, h.exec.TryBegin())
			result, err := h.exec.Execute(context.Background(), cycle, quote)
			require.Error(t, err)

			assert.Len(t, h.contract.sent, tt.wantSent)
			if tt.wantSwap {
				require.NotNil(t, result)
				assert.NotEqual(t, common.Hash{}, result.SwapTx)
				assert.Equal(t, tt.wantClaim, result.ClaimTx != common.Hash{})
			}

			assert.Equal(t, Idle, h.exec.State())
			assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.Executions.WithLabelValues("failed")))
		})
	}
}

func TestExecuteRevertedIsDetectable(t *testing.T) {
	h := newHarness(t, nil)
	h.receipts.reverted["swapAndRedeem"] = true
	cycle, quote := testCycle()

	require.True(t, h.exec.TryBegin())
	_, err := h.exec.Execute(context.Background(), cycle, quote)
	assert.ErrorIs(t, err, ErrReverted)
}

func TestExecuteWithoutPreflight(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Preflight = false })
	cycle, quote := testCycle()

	require.True(t, h.exec.TryBegin())
	_, err := h.exec.Execute(context.Background(), cycle, quote)
	require.NoError(t, err)
	assert.Zero(t, h.sim.called)
}

func TestExecuteRequiresTryBegin(t *testing.T) {
	h := newHarness(t, nil)
	cycle, quote := testCycle()

	_, err := h.exec.Execute(context.Background(), cycle, quote)
	assert.Error(t, err)
	assert.Empty(t, h.contract.sent)
}

func TestClaim(t *testing.T) {
	tests := []struct {
		name      string
		gasPrice  *big.Int
		wantPrice int64
	}{
		{"configured price", big.NewInt(50), 50},
		{"node price", nil, 31},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(c *Config) { c.ClaimGasPrice = tt.gasPrice })

			hash, err := h.exec.Claim(context.Background())
			require.NoError(t, err)
			assert.NotEqual(t, common.Hash{}, hash)

			require.Len(t, h.contract.sent, 1)
			assert.Equal(t, "claim", h.contract.sent[0].method)
			assert.Equal(t, uint64(40), h.contract.sent[0].nonce)
			assert.Equal(t, tt.wantPrice, h.contract.sent[0].gasPrice.Int64())
			assert.Equal(t, Idle, h.exec.State())
		})
	}
}

func TestClaimWhileBusy(t *testing.T) {
	h := newHarness(t, nil)
	require.True(t, h.exec.TryBegin())

	_, err := h.exec.Claim(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, Submitting, h.exec.State())
}

func TestNewExecutorValidation(t *testing.T) {
	opts, _, err := NewTransactor("0x"+testKey, big.NewInt(137))
	require.NoError(t, err)
	m := metrics.NewExecutionMetrics("test", prometheus.NewRegistry())
	logger := zaptest.NewLogger(t)

	_, err = NewExecutor(Config{SlippageBps: 0}, opts, &fakeContract{}, nil, nil, nil, fakeGas{}, nil, m, logger)
	assert.Error(t, err)

	_, err = NewExecutor(Config{SlippageBps: 9900, Preflight: true}, opts, &fakeContract{}, nil, nil, nil, fakeGas{}, nil, m, logger)
	assert.Error(t, err)

	_, err = NewExecutor(Config{SlippageBps: 9900}, nil, &fakeContract{}, nil, nil, nil, fakeGas{}, nil, m, logger)
	assert.Error(t, err)

	_, _, err = NewTransactor("not-a-key", big.NewInt(137))
	assert.Error(t, err)
}

func TestMinIntermediate(t *testing.T) {
	h := newHarness(t, nil)
	assert.Equal(t, int64(9_900), h.exec.MinIntermediate(big.NewInt(10_000)).Int64())
	assert.Equal(t, int64(98), h.exec.MinIntermediate(big.NewInt(99)).Int64())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "awaiting_confirmation", AwaitingConfirmation.String())
	assert.Equal(t, "unknown", State(9).String())
}
