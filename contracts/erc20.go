package contracts

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

const erc20ABIJson = `[{
	"constant": true,
	"inputs": [{"name": "owner", "type": "address"}],
	"name": "balanceOf",
	"outputs": [{"name": "", "type": "uint256"}],
	"stateMutability": "view",
	"type": "function"
}, {
	"constant": true,
	"inputs": [],
	"name": "totalSupply",
	"outputs": [{"name": "", "type": "uint256"}],
	"stateMutability": "view",
	"type": "function"
}, {
	"constant": true,
	"inputs": [],
	"name": "decimals",
	"outputs": [{"name": "", "type": "uint8"}],
	"stateMutability": "view",
	"type": "function"
}]`

// TokenReader reads ERC20 state of any token through one backend
type TokenReader struct {
	caller   bind.ContractCaller
	erc20ABI abi.ABI
}

func NewTokenReader(caller bind.ContractCaller) (*TokenReader, error) {
	parsedABI, err := abi.JSON(strings.NewReader(erc20ABIJson))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}
	return &TokenReader{caller: caller, erc20ABI: parsedABI}, nil
}

func (r *TokenReader) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	v, err := r.callUint(ctx, token, "balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance of %s on %s: %w", owner.Hex(), token.Hex(), err)
	}
	return v, nil
}

func (r *TokenReader) TotalSupply(ctx context.Context, token common.Address) (*big.Int, error) {
	v, err := r.callUint(ctx, token, "totalSupply")
	if err != nil {
		return nil, fmt.Errorf("failed to get total supply of %s: %w", token.Hex(), err)
	}
	return v, nil
}

func (r *TokenReader) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	contract := bind.NewBoundContract(token, r.erc20ABI, r.caller, nil, nil)

	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "decimals"); err != nil {
		return 0, fmt.Errorf("failed to get decimals of %s: %w", token.Hex(), err)
	}
	decimals, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("failed to parse decimals")
	}
	return decimals, nil
}

func (r *TokenReader) callUint(ctx context.Context, token common.Address, method string, params ...interface{}) (*big.Int, error) {
	contract := bind.NewBoundContract(token, r.erc20ABI, r.caller, nil, nil)

	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, method, params...); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty %s output", method)
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("failed to parse %s output", method)
	}
	return v, nil
}
