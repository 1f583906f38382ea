package uniswap

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// Pair contract ABI
const pairABIJson = `[{
	"constant": true,
	"inputs": [],
	"name": "getReserves",
	"outputs": [
		{"name": "reserve0", "type": "uint112"},
		{"name": "reserve1", "type": "uint112"},
		{"name": "blockTimestampLast", "type": "uint32"}
	],
	"payable": false,
	"stateMutability": "view",
	"type": "function"
}, {
	"constant": true,
	"inputs": [],
	"name": "token0",
	"outputs": [{"name": "", "type": "address"}],
	"payable": false,
	"stateMutability": "view",
	"type": "function"
}]`

// PairReader reads reserves of arbitrary V2 pairs through one backend.
type PairReader struct {
	caller  bind.ContractCaller
	pairABI abi.ABI
}

// NewPairReader creates a reader bound to caller
func NewPairReader(caller bind.ContractCaller) (*PairReader, error) {
	parsedABI, err := abi.JSON(strings.NewReader(pairABIJson))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pair ABI: %w", err)
	}

	return &PairReader{
		caller:  caller,
		pairABI: parsedABI,
	}, nil
}

// GetReserves returns the current reserves of the pair
func (p *PairReader) GetReserves(ctx context.Context, pair common.Address) (*big.Int, *big.Int, error) {
	contract := bind.NewBoundContract(pair, p.pairABI, p.caller, nil, nil)

	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "getReserves"); err != nil {
		return nil, nil, fmt.Errorf("failed to get reserves of %s: %w", pair.Hex(), err)
	}
	if len(out) < 2 {
		return nil, nil, fmt.Errorf("unexpected getReserves output length %d", len(out))
	}

	reserve0, ok := out[0].(*big.Int)
	if !ok {
		return nil, nil, fmt.Errorf("failed to parse reserve0")
	}
	reserve1, ok := out[1].(*big.Int)
	if !ok {
		return nil, nil, fmt.Errorf("failed to parse reserve1")
	}

	return reserve0, reserve1, nil
}

// Token0 returns the address of token0
func (p *PairReader) Token0(ctx context.Context, pair common.Address) (common.Address, error) {
	contract := bind.NewBoundContract(pair, p.pairABI, p.caller, nil, nil)

	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "token0"); err != nil {
		return common.Address{}, fmt.Errorf("failed to get token0: %w", err)
	}

	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("failed to parse token0 address")
	}

	return addr, nil
}
