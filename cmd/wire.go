package cmd

import (
	"context"
	"fmt"

	"github.com/ErbaZZ/wusd-arb/config"
	"github.com/ErbaZZ/wusd-arb/contracts"
	"github.com/ErbaZZ/wusd-arb/dex/uniswap"
	"github.com/ErbaZZ/wusd-arb/executor"
	"github.com/ErbaZZ/wusd-arb/gas"
	"github.com/ErbaZZ/wusd-arb/simulator"
	"github.com/ErbaZZ/wusd-arb/state"
	"github.com/ErbaZZ/wusd-arb/strategies/arbitrage"
	"github.com/ErbaZZ/wusd-arb/utils/metrics"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// chain bundles the node client and everything read through it
type chain struct {
	client    *ethclient.Client
	tokens    *contracts.TokenReader
	estimator *gas.Estimator
	provider  *state.Provider
}

func loadConfig() (*config.Config, error) {
	if err := config.LoadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return config.LoadConfig(cfgFile)
}

func newMaximizer(cfg *config.StrategyConfig) (*arbitrage.Maximizer, error) {
	num, den, err := cfg.BonusRatio()
	if err != nil {
		return nil, err
	}
	threshold, err := cfg.ThresholdUnits()
	if err != nil {
		return nil, err
	}
	return arbitrage.NewMaximizer(arbitrage.Params{
		FeeBps:           cfg.FeeBps,
		BonusNumerator:   num,
		BonusDenominator: den,
		Threshold:        threshold,
	})
}

func newDetector(cfg *config.StrategyConfig, logger *zap.Logger) (*arbitrage.Detector, error) {
	maximizer, err := newMaximizer(cfg)
	if err != nil {
		return nil, err
	}
	minProfit, err := cfg.MinProfitUnits()
	if err != nil {
		return nil, err
	}
	return arbitrage.NewDetector(maximizer, minProfit, cfg.QuoteCacheSize, logger)
}

func dialChain(ctx context.Context, cfg *config.Config, wallet common.Address, logger *zap.Logger) (*chain, error) {
	client, err := ethclient.DialContext(ctx, cfg.Network.RPCEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to node: %w", err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to get chain id: %w", err)
	}
	if chainID.Int64() != cfg.Network.ChainID {
		client.Close()
		return nil, fmt.Errorf("node is on chain %s, config expects %d", chainID, cfg.Network.ChainID)
	}

	tokens, err := contracts.NewTokenReader(client)
	if err != nil {
		client.Close()
		return nil, err
	}
	pairs, err := uniswap.NewPairReader(client)
	if err != nil {
		client.Close()
		return nil, err
	}

	bump, err := cfg.Gas.PriceBumpWei()
	if err != nil {
		client.Close()
		return nil, err
	}
	estimator := gas.NewEstimator(client, bump, logger)

	addrs, err := state.ResolveAddresses(cfg, wallet)
	if err != nil {
		client.Close()
		return nil, err
	}
	provider, err := state.NewProvider(addrs, tokens, pairs, estimator, cfg.Network.SnapshotCallTimeout, logger)
	if err != nil {
		client.Close()
		return nil, err
	}

	logger.Info("Connected to node",
		zap.String("chainId", chainID.String()),
		zap.String("wallet", wallet.Hex()))

	return &chain{
		client:    client,
		tokens:    tokens,
		estimator: estimator,
		provider:  provider,
	}, nil
}

func (c *chain) Close() {
	c.client.Close()
}

func newExecutor(cfg *config.Config, c *chain, opts *bind.TransactOpts, blocks executor.BlockWaiter, m *metrics.ExecutionMetrics, logger *zap.Logger) (*executor.Executor, error) {
	arb, err := contracts.NewArbContract(common.HexToAddress(cfg.Contracts.ArbContract), c.client)
	if err != nil {
		return nil, err
	}

	// zero falls back to the node's price
	claimPrice, err := cfg.Gas.ClaimGasPriceWei()
	if err != nil {
		return nil, err
	}

	return executor.NewExecutor(executor.Config{
		InputToken:     common.HexToAddress(cfg.Contracts.InputToken),
		SlippageBps:    cfg.Strategy.SlippageBps,
		GasLimit:       cfg.Gas.GasLimit,
		ClaimGasPrice:  claimPrice,
		Preflight:      cfg.Execution.Preflight,
		ConfirmTimeout: cfg.Execution.ConfirmTimeout,
		AssetDecimals:  cfg.Strategy.AssetDecimals,
	}, opts, arb, executor.NewMinedWaiter(c.client), blocks, c.tokens, c.estimator,
		simulator.NewSimulator(c.client), m, logger)
}
