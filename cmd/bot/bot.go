package bot

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ErbaZZ/wusd-arb/executor"
	"github.com/ErbaZZ/wusd-arb/notify"
	"github.com/ErbaZZ/wusd-arb/state"
	"github.com/ErbaZZ/wusd-arb/storage"
	"github.com/ErbaZZ/wusd-arb/strategies/arbitrage"
	arbtypes "github.com/ErbaZZ/wusd-arb/types"
	"github.com/ErbaZZ/wusd-arb/utils"
	"github.com/ErbaZZ/wusd-arb/utils/metrics"

	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// Reasons a head is skipped, used as metric labels
const (
	SkipBusy          = "busy"
	SkipBreakerOpen   = "breaker_open"
	SkipRateLimited   = "rate_limited"
	SkipSnapshotError = "snapshot_error"
	SkipNoBalance     = "no_balance"
	SkipDegenerate    = "degenerate"
	SkipQuoteError    = "quote_error"
)

type HeadFeed interface {
	Start(ctx context.Context) <-chan *types.Header
	Wait()
}

type SnapshotSource interface {
	Fetch(ctx context.Context, blockNumber uint64) (*state.Cycle, error)
}

type Evaluator interface {
	Evaluate(snapshot *arbtypes.Snapshot) (*arbitrage.Opportunity, error)
}

type Runner interface {
	Busy() bool
	TryBegin() bool
	Execute(ctx context.Context, cycle *state.Cycle, quote *arbtypes.ProfitQuote) (*executor.Result, error)
}

type Breaker interface {
	IsHealthy() bool
	RecordError(err error) bool
}

type Limiter interface {
	Wait(ctx context.Context) error
}

// Deps are the components the bot drives. Journal may be nil.
type Deps struct {
	Heads     HeadFeed
	Snapshots SnapshotSource
	Detector  Evaluator
	Executor  Runner
	Breaker   Breaker
	Throttle  Limiter
	Notifier  notify.Notifier
	Journal   *storage.Journal
	Metrics   *metrics.BotMetrics
	Formatter notify.Formatter
}

// Bot runs one evaluation per new head and executes profitable quotes
type Bot struct {
	deps   Deps
	logger *zap.Logger
	wg     sync.WaitGroup
}

// New creates a new bot instance
func New(deps Deps, logger *zap.Logger) (*Bot, error) {
	switch {
	case deps.Heads == nil:
		return nil, errors.New("bot needs a head feed")
	case deps.Snapshots == nil:
		return nil, errors.New("bot needs a snapshot source")
	case deps.Detector == nil:
		return nil, errors.New("bot needs a detector")
	case deps.Executor == nil:
		return nil, errors.New("bot needs an executor")
	case deps.Breaker == nil || deps.Throttle == nil:
		return nil, errors.New("bot needs a breaker and a throttle")
	case deps.Metrics == nil:
		return nil, errors.New("bot needs metrics")
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}

	return &Bot{deps: deps, logger: logger}, nil
}

// Run processes heads until ctx is done and the feed closes, then waits for
// in-flight executions.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting arbitrage bot...")

	heads := b.deps.Heads.Start(ctx)
	for header := range heads {
		if ctx.Err() != nil {
			continue
		}
		b.handleHead(ctx, header)
	}

	b.deps.Heads.Wait()
	b.Stop()
	return ctx.Err()
}

// Stop waits for in-flight executions
func (b *Bot) Stop() {
	b.wg.Wait()
}

func (b *Bot) skip(reason string) {
	b.deps.Metrics.Strategy.Skipped.WithLabelValues(reason).Inc()
}

func (b *Bot) handleHead(ctx context.Context, header *types.Header) {
	blockNumber := header.Number.Uint64()

	if b.deps.Executor.Busy() {
		b.skip(SkipBusy)
		return
	}
	if !b.deps.Breaker.IsHealthy() {
		b.skip(SkipBreakerOpen)
		return
	}
	if err := b.deps.Throttle.Wait(ctx); err != nil {
		b.skip(SkipRateLimited)
		return
	}

	start := time.Now()
	cycle, err := b.deps.Snapshots.Fetch(ctx, blockNumber)
	b.deps.Metrics.Chain.SnapshotLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		b.deps.Metrics.Chain.SnapshotErrors.Inc()
		b.deps.Breaker.RecordError(err)
		b.skip(SkipSnapshotError)
		b.logger.Warn("Failed to fetch snapshot", zap.Uint64("block", blockNumber), zap.Error(err))
		return
	}

	opp, err := b.deps.Detector.Evaluate(cycle.Snapshot)
	if err != nil {
		switch {
		case errors.Is(err, arbitrage.ErrNoBalance):
			b.skip(SkipNoBalance)
		case errors.Is(err, arbitrage.ErrDegenerateDomain):
			b.skip(SkipDegenerate)
			b.logger.Warn("Degenerate snapshot", zap.Uint64("block", blockNumber), zap.Error(err))
		default:
			b.skip(SkipQuoteError)
			b.logger.Error("Failed to quote", zap.Uint64("block", blockNumber), zap.Error(err))
		}
		return
	}

	b.observe(opp)

	if opp.Changed {
		b.logger.Info("Quote changed",
			zap.Uint64("block", blockNumber),
			zap.String("amount", b.units(opp.Quote.Amount)),
			zap.String("redeem", b.units(opp.Quote.RedeemAmount)),
			zap.String("profit", b.units(opp.Quote.Profit)),
			zap.Bool("profitable", opp.Profitable))
	}

	if !opp.Profitable {
		return
	}
	b.deps.Metrics.Strategy.Opportunities.Inc()

	if !b.deps.Executor.TryBegin() {
		b.skip(SkipBusy)
		return
	}

	oppID, err := b.deps.Journal.RecordOpportunity(ctx, blockNumber, opp.Quote)
	if err != nil {
		b.logger.Error("Failed to journal opportunity", zap.Error(err))
	}
	b.notify(ctx, b.deps.Formatter.Opportunity(opp.Quote))

	// in-flight cycles finish on shutdown; Stop waits for them
	execCtx := context.WithoutCancel(ctx)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.execute(execCtx, cycle, opp.Quote, oppID)
	}()
}

func (b *Bot) observe(opp *arbitrage.Opportunity) {
	m := b.deps.Metrics.Strategy
	m.Evaluations.Inc()
	if !opp.Cached {
		m.SearchIterations.Observe(float64(opp.Quote.Iterations))
	}
	profit, _ := utils.ToDecimal(opp.Quote.Profit, b.deps.Formatter.Decimals).Float64()
	amount, _ := utils.ToDecimal(opp.Quote.Amount, b.deps.Formatter.Decimals).Float64()
	m.QuotedProfit.Set(profit)
	m.QuotedAmount.Set(amount)
}

func (b *Bot) execute(ctx context.Context, cycle *state.Cycle, quote *arbtypes.ProfitQuote, oppID int64) {
	log := b.logger.With(zap.Uint64("block", cycle.Snapshot.BlockNumber))

	result, err := b.deps.Executor.Execute(ctx, cycle, quote)

	entry := &storage.Execution{OpportunityID: oppID, Err: err}
	if result != nil {
		entry.SwapTx = result.SwapTx
		entry.ClaimTx = result.ClaimTx
		if result.Realized != nil {
			entry.RealizedProfit = result.Realized.Profit
		}
	}

	switch {
	case err != nil:
		entry.Outcome = storage.OutcomeFailed
		log.Error("Execution failed", zap.Error(err))
		b.notify(ctx, b.deps.Formatter.Failed(err))
	case result.Bad:
		entry.Outcome = storage.OutcomeBad
		after := new(big.Int).Add(cycle.Snapshot.Balance, result.Realized.Profit)
		log.Warn("Execution lost money",
			zap.String("profit", b.units(result.Realized.Profit)),
			zap.String("balance", b.units(after)))
		b.notify(ctx, b.deps.Formatter.Bad(after))
	default:
		entry.Outcome = storage.OutcomeSuccess
		after := new(big.Int).Add(cycle.Snapshot.Balance, result.Realized.Profit)
		log.Info("Execution succeeded",
			zap.String("profit", b.units(result.Realized.Profit)),
			zap.String("percent", result.Realized.Percent.StringFixed(2)),
			zap.String("balance", b.units(after)),
			zap.Duration("took", result.Duration))
		b.notify(ctx, b.deps.Formatter.Success(result.Realized, after))
	}

	if err := b.deps.Journal.RecordExecution(ctx, entry); err != nil {
		log.Error("Failed to journal execution", zap.Error(err))
	}
}

func (b *Bot) notify(ctx context.Context, message string) {
	if err := b.deps.Notifier.Notify(ctx, message); err != nil {
		b.logger.Warn("Failed to send notification", zap.Error(err))
	}
}

func (b *Bot) units(v *big.Int) string {
	return fmt.Sprintf("%s %s", utils.FormatUnits(v, b.deps.Formatter.Decimals), b.deps.Formatter.Symbol)
}
