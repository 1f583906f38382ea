package utils

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

// RealizedProfit is the outcome of a finished cycle measured on the wallet
type RealizedProfit struct {
	Profit *big.Int
	// Percent of the traded amount, truncated to two decimals
	Percent decimal.Decimal
	// Loss is set when the balance went down
	Loss bool
}

// CalculateRealizedProfit compares the wallet balance before and after a
// cycle that traded amount.
func CalculateRealizedProfit(before, after, amount *big.Int) (*RealizedProfit, error) {
	if before == nil || after == nil || amount == nil {
		return nil, errors.New("invalid parameters")
	}

	profit := new(big.Int).Sub(after, before)
	result := &RealizedProfit{
		Profit:  profit,
		Percent: decimal.Zero,
		Loss:    profit.Sign() < 0,
	}

	if amount.Sign() > 0 {
		bps := new(big.Int).Mul(profit, big.NewInt(10000))
		bps.Quo(bps, amount)
		result.Percent = decimal.NewFromBigInt(bps, -2)
	}

	return result, nil
}
