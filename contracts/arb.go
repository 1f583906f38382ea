package contracts

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Arbitrage contract: swaps the input asset into the intermediate asset and
// redeems it in one call, then releases the reward leg on claim.
const arbABIJson = `[{
	"inputs": [
		{"name": "amount", "type": "uint256"},
		{"name": "minIntermediate", "type": "uint256"}
	],
	"name": "swapAndRedeem",
	"outputs": [],
	"stateMutability": "nonpayable",
	"type": "function"
}, {
	"inputs": [{"name": "minAmountOut", "type": "uint256"}],
	"name": "claim",
	"outputs": [],
	"stateMutability": "nonpayable",
	"type": "function"
}]`

// ArbContract wraps the deployed arbitrage contract
type ArbContract struct {
	address  common.Address
	contract *bind.BoundContract
	arbABI   abi.ABI
}

func NewArbContract(address common.Address, backend bind.ContractBackend) (*ArbContract, error) {
	parsedABI, err := abi.JSON(strings.NewReader(arbABIJson))
	if err != nil {
		return nil, fmt.Errorf("failed to parse arbitrage ABI: %w", err)
	}

	return &ArbContract{
		address:  address,
		contract: bind.NewBoundContract(address, parsedABI, backend, backend, backend),
		arbABI:   parsedABI,
	}, nil
}

func (a *ArbContract) Address() common.Address {
	return a.address
}

func (a *ArbContract) SwapAndRedeem(opts *bind.TransactOpts, amount, minIntermediate *big.Int) (*types.Transaction, error) {
	return a.contract.Transact(opts, "swapAndRedeem", amount, minIntermediate)
}

func (a *ArbContract) Claim(opts *bind.TransactOpts, minAmountOut *big.Int) (*types.Transaction, error) {
	return a.contract.Transact(opts, "claim", minAmountOut)
}

// PackSwapAndRedeem returns the calldata of swapAndRedeem for simulation
func (a *ArbContract) PackSwapAndRedeem(amount, minIntermediate *big.Int) ([]byte, error) {
	return a.arbABI.Pack("swapAndRedeem", amount, minIntermediate)
}
