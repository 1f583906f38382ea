package state

import (
	"fmt"

	"github.com/ErbaZZ/wusd-arb/config"
	"github.com/ErbaZZ/wusd-arb/dex/uniswap"

	"github.com/ethereum/go-ethereum/common"
)

// Hop is one resolved pool of a route
type Hop struct {
	Pair     common.Address
	TokenIn  common.Address
	TokenOut common.Address
}

type Route []Hop

// Addresses resolves everything the provider reads from chain
type Addresses struct {
	Wallet            common.Address
	InputToken        common.Address
	IntermediateToken common.Address
	RewardToken       common.Address
	RewardHolder      common.Address

	MintRoute   Route
	RewardRoute Route
}

// ResolveAddresses turns validated configuration into addresses, deriving
// the pair of every hop that does not name one.
func ResolveAddresses(cfg *config.Config, wallet common.Address) (*Addresses, error) {
	mint, err := resolveRoute(cfg.Routes.Mint, &cfg.Contracts)
	if err != nil {
		return nil, fmt.Errorf("mint route: %w", err)
	}
	reward, err := resolveRoute(cfg.Routes.Reward, &cfg.Contracts)
	if err != nil {
		return nil, fmt.Errorf("reward route: %w", err)
	}

	return &Addresses{
		Wallet:            wallet,
		InputToken:        common.HexToAddress(cfg.Contracts.InputToken),
		IntermediateToken: common.HexToAddress(cfg.Contracts.IntermediateToken),
		RewardToken:       common.HexToAddress(cfg.Contracts.RewardToken),
		RewardHolder:      common.HexToAddress(cfg.Contracts.RewardHolder),
		MintRoute:         mint,
		RewardRoute:       reward,
	}, nil
}

func resolveRoute(hops []config.HopConfig, contracts *config.ContractsConfig) (Route, error) {
	route := make(Route, 0, len(hops))
	for i, h := range hops {
		hop := Hop{
			TokenIn:  common.HexToAddress(h.TokenIn),
			TokenOut: common.HexToAddress(h.TokenOut),
		}
		switch {
		case h.Pair != "":
			hop.Pair = common.HexToAddress(h.Pair)
		case contracts.CanDerivePairs():
			hop.Pair = uniswap.PairFor(
				common.HexToAddress(contracts.Factory),
				common.HexToHash(contracts.InitCodeHash),
				hop.TokenIn, hop.TokenOut)
		default:
			return nil, fmt.Errorf("hop %d has no pair and it cannot be derived", i)
		}
		route = append(route, hop)
	}
	return route, nil
}
