package uniswap

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ErbaZZ/wusd-arb/dex"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// ErrInvalidQuote is returned when the constant-product formula is undefined
// for the given amounts and reserves.
var ErrInvalidQuote = errors.New("invalid quote")

// BasisPoints is the denominator of fee multipliers (9980 = 0.2% fee).
const BasisPoints = 10000

var basisPointDivisor = uint256.NewInt(BasisPoints)

// GetAmountOut returns the output of a single constant-product swap. The fee
// is truncated first, then the output is floored, matching the pair contract.
// Arithmetic is 256-bit; an overflow is reported as ErrInvalidQuote since the
// contract would revert.
func GetAmountOut(amountIn *big.Int, feeBps uint64, reserveIn, reserveOut *big.Int) (*big.Int, error) {
	in, err := toUint256("amountIn", amountIn)
	if err != nil {
		return nil, err
	}
	rIn, err := toUint256("reserveIn", reserveIn)
	if err != nil {
		return nil, err
	}
	rOut, err := toUint256("reserveOut", reserveOut)
	if err != nil {
		return nil, err
	}

	amountInWithFee, overflow := new(uint256.Int).MulOverflow(in, uint256.NewInt(feeBps))
	if overflow {
		return nil, fmt.Errorf("%w: amountIn * fee overflows", ErrInvalidQuote)
	}
	amountInWithFee.Div(amountInWithFee, basisPointDivisor)

	numerator, overflow := new(uint256.Int).MulOverflow(amountInWithFee, rOut)
	if overflow {
		return nil, fmt.Errorf("%w: numerator overflows", ErrInvalidQuote)
	}
	denominator, overflow := new(uint256.Int).AddOverflow(rIn, amountInWithFee)
	if overflow {
		return nil, fmt.Errorf("%w: denominator overflows", ErrInvalidQuote)
	}
	if denominator.IsZero() {
		return nil, fmt.Errorf("%w: zero liquidity", ErrInvalidQuote)
	}

	return numerator.Div(numerator, denominator).ToBig(), nil
}

// GetAmountsOut chains GetAmountOut across every hop of path. The result has
// len(path)+1 entries and starts with a copy of amountIn.
func GetAmountsOut(amountIn *big.Int, feeBps uint64, path dex.SwapPath) ([]*big.Int, error) {
	if amountIn == nil {
		return nil, fmt.Errorf("%w: nil amountIn", ErrInvalidQuote)
	}

	amounts := make([]*big.Int, len(path)+1)
	amounts[0] = new(big.Int).Set(amountIn)
	for i, hop := range path {
		out, err := GetAmountOut(amounts[i], feeBps, hop.ReserveIn, hop.ReserveOut)
		if err != nil {
			return nil, fmt.Errorf("hop %d: %w", i, err)
		}
		amounts[i+1] = out
	}

	return amounts, nil
}

// GetAmountIn returns the minimum input that yields amountOut from a single
// swap. The result rounds up by one unit over the floored quotient.
func GetAmountIn(amountOut *big.Int, feeBps uint64, reserveIn, reserveOut *big.Int) (*big.Int, error) {
	out, err := toUint256("amountOut", amountOut)
	if err != nil {
		return nil, err
	}
	rIn, err := toUint256("reserveIn", reserveIn)
	if err != nil {
		return nil, err
	}
	rOut, err := toUint256("reserveOut", reserveOut)
	if err != nil {
		return nil, err
	}
	if !out.Lt(rOut) {
		return nil, fmt.Errorf("%w: reserveOut %s <= amountOut %s", ErrInvalidQuote, reserveOut, amountOut)
	}
	if feeBps == 0 {
		return nil, fmt.Errorf("%w: zero fee multiplier", ErrInvalidQuote)
	}

	numerator, overflow := new(uint256.Int).MulOverflow(rIn, out)
	if overflow {
		return nil, fmt.Errorf("%w: numerator overflows", ErrInvalidQuote)
	}
	if _, overflow = numerator.MulOverflow(numerator, basisPointDivisor); overflow {
		return nil, fmt.Errorf("%w: numerator overflows", ErrInvalidQuote)
	}

	denominator := new(uint256.Int).Sub(rOut, out)
	if _, overflow = denominator.MulOverflow(denominator, uint256.NewInt(feeBps)); overflow {
		return nil, fmt.Errorf("%w: denominator overflows", ErrInvalidQuote)
	}

	amountIn := numerator.Div(numerator, denominator).ToBig()
	return amountIn.Add(amountIn, big.NewInt(1)), nil
}

// PairFor derives the CREATE2 address of the pair for tokenA and tokenB.
func PairFor(factory common.Address, initCodeHash common.Hash, tokenA, tokenB common.Address) common.Address {
	token0, token1 := dex.SortTokens(tokenA, tokenB)

	salt := crypto.Keccak256(token0.Bytes(), token1.Bytes())
	return common.BytesToAddress(crypto.Keccak256(
		[]byte{0xff},
		factory.Bytes(),
		salt,
		initCodeHash.Bytes(),
	))
}

func toUint256(name string, v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: nil %s", ErrInvalidQuote, name)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative %s", ErrInvalidQuote, name)
	}
	u, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("%w: %s exceeds 256 bits", ErrInvalidQuote, name)
	}
	return u, nil
}
