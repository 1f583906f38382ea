package notify

import (
	"fmt"
	"math/big"

	"github.com/ErbaZZ/wusd-arb/types"
	"github.com/ErbaZZ/wusd-arb/utils"
)

// Formatter renders amounts of the input asset
type Formatter struct {
	Symbol   string
	Decimals int32
}

func (f Formatter) units(v *big.Int) string {
	return utils.FormatUnits(v, f.Decimals) + " " + f.Symbol
}

// Opportunity reports a quote about to be executed
func (f Formatter) Opportunity(q *types.ProfitQuote) string {
	return fmt.Sprintf("\n%s -> %s\nProfit: %s",
		utils.FormatUnits(q.Amount, f.Decimals),
		f.units(q.RedeemAmount),
		f.units(q.Profit))
}

// Success reports a finished cycle
func (f Formatter) Success(r *utils.RealizedProfit, balance *big.Int) string {
	return fmt.Sprintf("SUCCESS:\n%s (%s%%)\nBalance: %s",
		f.units(r.Profit),
		r.Percent.StringFixed(2),
		f.units(balance))
}

// Bad reports a cycle that lost money
func (f Formatter) Bad(balance *big.Int) string {
	return fmt.Sprintf("BAD:\nBalance: %s", f.units(balance))
}

// Failed reports a cycle that did not complete
func (f Formatter) Failed(err error) string {
	return fmt.Sprintf("FAILED:\n%v", err)
}
