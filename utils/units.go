package utils

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// ToDecimal converts a base-unit amount into a human-readable decimal
func ToDecimal(amount *big.Int, decimals int32) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -decimals)
}

// FormatUnits renders a base-unit amount with four decimal places
func FormatUnits(amount *big.Int, decimals int32) string {
	return ToDecimal(amount, decimals).StringFixed(4)
}

// ParseUnits converts a human-readable amount such as "0.5" into base units.
// Values with more precision than decimals are rejected.
func ParseUnits(value string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", value, err)
	}

	shifted := d.Shift(decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("amount %q has more than %d decimals", value, decimals)
	}
	return shifted.BigInt(), nil
}
