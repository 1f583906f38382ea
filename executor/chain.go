package executor

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// MinedWaiter waits for receipts by polling the node
type MinedWaiter struct {
	backend bind.DeployBackend
}

func NewMinedWaiter(backend bind.DeployBackend) *MinedWaiter {
	return &MinedWaiter{backend: backend}
}

func (w *MinedWaiter) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	return bind.WaitMined(ctx, w.backend, tx)
}

// NewTransactor builds signing options from a hex private key
func NewTransactor(hexKey string, chainID *big.Int) (*bind.TransactOpts, *ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid private key: %w", err)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	return opts, key, nil
}
