package dex

import (
	"bytes"
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ReservePair is the liquidity of one hop, oriented in the direction of the swap.
// Values are captured once per evaluation cycle and must not be mutated.
type ReservePair struct {
	ReserveIn  *big.Int
	ReserveOut *big.Int
}

// SwapPath is an ordered list of hops. Hop i's output asset must be hop i+1's
// input asset; the model does not check this.
type SwapPath []ReservePair

// ReserveReader reads raw pair reserves in token0/token1 order
type ReserveReader interface {
	GetReserves(ctx context.Context, pair common.Address) (reserve0, reserve1 *big.Int, err error)
}

// NewReservePair copies the given values into an immutable pair.
func NewReservePair(reserveIn, reserveOut *big.Int) ReservePair {
	return ReservePair{
		ReserveIn:  new(big.Int).Set(reserveIn),
		ReserveOut: new(big.Int).Set(reserveOut),
	}
}

// SortTokens returns the two addresses in pair order (token0 < token1).
func SortTokens(tokenA, tokenB common.Address) (common.Address, common.Address) {
	if bytes.Compare(tokenA.Bytes(), tokenB.Bytes()) > 0 {
		return tokenB, tokenA
	}
	return tokenA, tokenB
}

// Orient turns raw token0/token1 reserves into a ReservePair for a swap that
// sells tokenIn.
func Orient(reserve0, reserve1 *big.Int, token0, tokenIn common.Address) ReservePair {
	if tokenIn == token0 {
		return NewReservePair(reserve0, reserve1)
	}
	return NewReservePair(reserve1, reserve0)
}
