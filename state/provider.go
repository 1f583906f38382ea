package state

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ErbaZZ/wusd-arb/dex"
	"github.com/ErbaZZ/wusd-arb/types"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// TokenReader reads ERC20 balances and supplies
type TokenReader interface {
	BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error)
	TotalSupply(ctx context.Context, token common.Address) (*big.Int, error)
}

// GasOracle provides the gas price and nonce of the next cycle
type GasOracle interface {
	GasPrice(ctx context.Context) (*big.Int, error)
	Nonce(ctx context.Context, account common.Address) (uint64, error)
}

// Cycle is everything one evaluation needs, read as a single unit
type Cycle struct {
	Snapshot *types.Snapshot
	GasPrice *big.Int
	Nonce    uint64
}

// Provider reads the chain state of one evaluation cycle
type Provider struct {
	addrs       *Addresses
	tokens      TokenReader
	reserves    dex.ReserveReader
	gas         GasOracle
	callTimeout time.Duration
	logger      *zap.Logger
}

func NewProvider(addrs *Addresses, tokens TokenReader, reserves dex.ReserveReader, gas GasOracle, callTimeout time.Duration, logger *zap.Logger) (*Provider, error) {
	if addrs == nil || len(addrs.MintRoute) == 0 {
		return nil, errors.New("provider needs a mint route")
	}
	if tokens == nil || reserves == nil || gas == nil {
		return nil, errors.New("provider needs token, reserve and gas readers")
	}
	return &Provider{
		addrs:       addrs,
		tokens:      tokens,
		reserves:    reserves,
		gas:         gas,
		callTimeout: callTimeout,
		logger:      logger,
	}, nil
}

func (p *Provider) Addresses() *Addresses {
	return p.addrs
}

// Fetch reads gas price, nonce, balances and every hop's reserves
// concurrently. The first failing read cancels the others and fails the cycle.
func (p *Provider) Fetch(ctx context.Context, blockNumber uint64) (*Cycle, error) {
	start := time.Now()
	if p.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.callTimeout)
		defer cancel()
	}

	var (
		cycle    = &Cycle{}
		snapshot = &types.Snapshot{
			BlockNumber: blockNumber,
			MintPath:    make(dex.SwapPath, len(p.addrs.MintRoute)),
			RewardPath:  make(dex.SwapPath, len(p.addrs.RewardRoute)),
		}
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		price, err := p.gas.GasPrice(gctx)
		if err != nil {
			return err
		}
		cycle.GasPrice = price
		return nil
	})
	g.Go(func() error {
		nonce, err := p.gas.Nonce(gctx, p.addrs.Wallet)
		if err != nil {
			return err
		}
		cycle.Nonce = nonce
		return nil
	})
	g.Go(func() error {
		balance, err := p.tokens.BalanceOf(gctx, p.addrs.InputToken, p.addrs.Wallet)
		if err != nil {
			return err
		}
		snapshot.Balance = balance
		return nil
	})
	g.Go(func() error {
		supply, err := p.tokens.TotalSupply(gctx, p.addrs.IntermediateToken)
		if err != nil {
			return err
		}
		snapshot.IntermediateSupply = supply
		return nil
	})
	g.Go(func() error {
		reward, err := p.tokens.BalanceOf(gctx, p.addrs.RewardToken, p.addrs.RewardHolder)
		if err != nil {
			return err
		}
		snapshot.RewardBalance = reward
		return nil
	})

	// each goroutine writes its own slot
	p.fetchRoute(gctx, g, p.addrs.MintRoute, snapshot.MintPath)
	p.fetchRoute(gctx, g, p.addrs.RewardRoute, snapshot.RewardPath)

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to fetch snapshot for block %d: %w", blockNumber, err)
	}

	cycle.Snapshot = snapshot

	p.logger.Debug("Snapshot fetched",
		zap.Uint64("block", blockNumber),
		zap.String("balance", snapshot.Balance.String()),
		zap.String("supply", snapshot.IntermediateSupply.String()),
		zap.String("rewardBalance", snapshot.RewardBalance.String()),
		zap.Duration("took", time.Since(start)))

	return cycle, nil
}

func (p *Provider) fetchRoute(ctx context.Context, g *errgroup.Group, route Route, path dex.SwapPath) {
	for i, hop := range route {
		i, hop := i, hop
		g.Go(func() error {
			r0, r1, err := p.reserves.GetReserves(ctx, hop.Pair)
			if err != nil {
				return fmt.Errorf("reserves of %s: %w", hop.Pair.Hex(), err)
			}
			token0, _ := dex.SortTokens(hop.TokenIn, hop.TokenOut)
			path[i] = dex.Orient(r0, r1, token0, hop.TokenIn)
			return nil
		})
	}
}
