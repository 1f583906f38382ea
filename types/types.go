package types

import (
	"math/big"

	"github.com/ErbaZZ/wusd-arb/dex"
)

// Snapshot is the on-chain state one evaluation cycle works on. It is built
// once per block and never mutated afterwards.
type Snapshot struct {
	BlockNumber uint64

	// Balance is the wallet balance of the input asset
	Balance *big.Int
	// IntermediateSupply is the total supply of the minted asset
	IntermediateSupply *big.Int
	// RewardBalance is the reward asset held by the redemption contract
	RewardBalance *big.Int

	// MintPath swaps the input asset into the intermediate asset
	MintPath dex.SwapPath
	// RewardPath swaps the reward asset back into the input asset
	RewardPath dex.SwapPath
}

// ProfitQuote is the result of evaluating one candidate input amount.
// Profit = RedeemAmount - Amount and may be negative.
type ProfitQuote struct {
	Amount             *big.Int
	IntermediateAmount *big.Int
	RedeemAmount       *big.Int
	Profit             *big.Int

	// Iterations is the number of search rounds that produced the quote
	Iterations int
}

// Profitable reports whether the quote clears minProfit
func (q *ProfitQuote) Profitable(minProfit *big.Int) bool {
	return q != nil && q.Profit.Cmp(minProfit) >= 0
}
