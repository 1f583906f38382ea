package arbitrage

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ErbaZZ/wusd-arb/dex"
	"github.com/ErbaZZ/wusd-arb/dex/uniswap"
	"github.com/ErbaZZ/wusd-arb/types"
)

// ErrDegenerateDomain is returned when the search has nothing to search over:
// an empty balance, a missing mint path or an unusable snapshot.
var ErrDegenerateDomain = errors.New("degenerate search domain")

// Params fixes the economics of one swap-and-redeem cycle.
type Params struct {
	// FeeBps is the out-of-10000 multiplier retained by every swap hop
	FeeBps uint64
	// BonusNumerator and BonusDenominator convert the intermediate amount
	// into the fixed-rate part of the redemption payout.
	BonusNumerator   *big.Int
	BonusDenominator *big.Int
	// Threshold is the interval width, in input base units, at which the
	// search stops.
	Threshold *big.Int
}

// Validate checks the parameters
func (p Params) Validate() error {
	if p.FeeBps == 0 || p.FeeBps > uniswap.BasisPoints {
		return fmt.Errorf("fee bps must be in (0, %d], got %d", uniswap.BasisPoints, p.FeeBps)
	}
	if p.BonusNumerator == nil || p.BonusNumerator.Sign() < 0 {
		return fmt.Errorf("bonus numerator must be non-negative")
	}
	if p.BonusDenominator == nil || p.BonusDenominator.Sign() <= 0 {
		return fmt.Errorf("bonus denominator must be positive")
	}
	if p.Threshold == nil || p.Threshold.Sign() < 0 {
		return fmt.Errorf("convergence threshold must be non-negative")
	}
	return nil
}

// Maximizer searches for the input amount that maximises the profit of
// mint -> redeem -> sell reward. It is pure: no I/O, no shared state.
//
// The profit curve is assumed to be unimodal over [0, balance]. The swap
// legs are concave and the bonus is linear, so this holds for sane pools,
// but it is not checked; a curve with several peaks converges to one of them.
type Maximizer struct {
	params Params
}

// NewMaximizer creates a maximizer for params
func NewMaximizer(params Params) (*Maximizer, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid maximizer params: %w", err)
	}
	return &Maximizer{params: params}, nil
}

// Params returns the parameters the maximizer was built with
func (m *Maximizer) Params() Params {
	return m.params
}

// Quote evaluates the full cycle for a single input amount.
func (m *Maximizer) Quote(snapshot *types.Snapshot, amount *big.Int) (*types.ProfitQuote, error) {
	minted, err := uniswap.GetAmountsOut(amount, m.params.FeeBps, snapshot.MintPath)
	if err != nil {
		return nil, fmt.Errorf("mint path: %w", err)
	}
	intermediate := minted[len(minted)-1]

	// share of the reward pool paid out for the minted amount
	share := new(big.Int).Mul(snapshot.RewardBalance, intermediate)
	share.Quo(share, snapshot.IntermediateSupply)

	payouts, err := uniswap.GetAmountsOut(share, m.params.FeeBps, snapshot.RewardPath)
	if err != nil {
		return nil, fmt.Errorf("reward path: %w", err)
	}

	bonus := new(big.Int).Mul(intermediate, m.params.BonusNumerator)
	bonus.Quo(bonus, m.params.BonusDenominator)

	redeem := new(big.Int).Add(payouts[len(payouts)-1], bonus)

	return &types.ProfitQuote{
		Amount:             new(big.Int).Set(amount),
		IntermediateAmount: intermediate,
		RedeemAmount:       redeem,
		Profit:             new(big.Int).Sub(redeem, amount),
	}, nil
}

// GetMostProfitableAmount bisects [0, snapshot.Balance] for the most
// profitable input. Each round compares the midpoints of the two halves and
// keeps the half holding the better one. It stops once the interval is no
// wider than the threshold or stops shrinking, so it runs at most
// bitlen(balance)+2 rounds.
//
// A quote with negative profit is a valid result; callers decide whether to act.
func (m *Maximizer) GetMostProfitableAmount(snapshot *types.Snapshot) (*types.ProfitQuote, error) {
	if err := checkDomain(snapshot); err != nil {
		return nil, err
	}

	limitL := new(big.Int)
	limitR := new(big.Int).Set(snapshot.Balance)
	mid := new(big.Int).Rsh(limitR, 1)
	width := new(big.Int).Set(limitR)

	var best *types.ProfitQuote
	for iterations := 1; ; iterations++ {
		left := new(big.Int).Add(limitL, mid)
		left.Rsh(left, 1)
		right := new(big.Int).Add(mid, limitR)
		right.Rsh(right, 1)

		leftQuote, err := m.Quote(snapshot, left)
		if err != nil {
			return nil, err
		}
		rightQuote, err := m.Quote(snapshot, right)
		if err != nil {
			return nil, err
		}

		if leftQuote.Profit.Cmp(rightQuote.Profit) > 0 {
			limitR.Set(mid)
			best = leftQuote
		} else {
			limitL.Set(mid)
			best = rightQuote
		}
		mid.Add(limitL, limitR)
		mid.Rsh(mid, 1)

		next := new(big.Int).Sub(limitR, limitL)
		if next.Cmp(m.params.Threshold) <= 0 || next.Cmp(width) >= 0 {
			best.Iterations = iterations
			return best, nil
		}
		width = next
	}
}

func checkDomain(snapshot *types.Snapshot) error {
	switch {
	case snapshot == nil:
		return fmt.Errorf("%w: nil snapshot", ErrDegenerateDomain)
	case snapshot.Balance == nil || snapshot.Balance.Sign() <= 0:
		return fmt.Errorf("%w: no input balance", ErrDegenerateDomain)
	case len(snapshot.MintPath) == 0:
		return fmt.Errorf("%w: empty mint path", ErrDegenerateDomain)
	case snapshot.IntermediateSupply == nil || snapshot.IntermediateSupply.Sign() <= 0:
		return fmt.Errorf("%w: zero intermediate supply", ErrDegenerateDomain)
	case snapshot.RewardBalance == nil || snapshot.RewardBalance.Sign() < 0:
		return fmt.Errorf("%w: missing reward balance", ErrDegenerateDomain)
	}
	if err := checkPath(snapshot.MintPath); err != nil {
		return fmt.Errorf("mint path: %w", err)
	}
	if err := checkPath(snapshot.RewardPath); err != nil {
		return fmt.Errorf("reward path: %w", err)
	}
	return nil
}

func checkPath(path dex.SwapPath) error {
	for i, hop := range path {
		if hop.ReserveIn == nil || hop.ReserveOut == nil {
			return fmt.Errorf("%w: hop %d has no reserves", ErrDegenerateDomain, i)
		}
	}
	return nil
}
