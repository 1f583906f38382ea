package cmd

import (
	"fmt"
	"strings"

	"github.com/ErbaZZ/wusd-arb/config"
	"github.com/ErbaZZ/wusd-arb/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var quoteWallet string

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Print the most profitable trade for the current block without sending anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := utils.GetLogger()
		defer utils.CleanupLogger()
		ctx := cmd.Context()

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		wallet, err := quoteAccount(cfg)
		if err != nil {
			return err
		}

		c, err := dialChain(ctx, cfg, wallet, log)
		if err != nil {
			return err
		}
		defer c.Close()

		blockNumber, err := c.client.BlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("failed to get block number: %w", err)
		}
		cycle, err := c.provider.Fetch(ctx, blockNumber)
		if err != nil {
			return err
		}

		detector, err := newDetector(&cfg.Strategy, log)
		if err != nil {
			return err
		}
		opp, err := detector.Evaluate(cycle.Snapshot)
		if err != nil {
			return err
		}

		decimals, symbol := cfg.Strategy.AssetDecimals, cfg.Strategy.AssetSymbol
		q := opp.Quote
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "block:        %d\n", blockNumber)
		fmt.Fprintf(out, "balance:      %s %s\n", utils.FormatUnits(cycle.Snapshot.Balance, decimals), symbol)
		fmt.Fprintf(out, "amount:       %s %s\n", utils.FormatUnits(q.Amount, decimals), symbol)
		fmt.Fprintf(out, "intermediate: %s\n", q.IntermediateAmount)
		fmt.Fprintf(out, "redeem:       %s %s\n", utils.FormatUnits(q.RedeemAmount, decimals), symbol)
		fmt.Fprintf(out, "profit:       %s %s\n", utils.FormatUnits(q.Profit, decimals), symbol)
		fmt.Fprintf(out, "iterations:   %d\n", q.Iterations)
		fmt.Fprintf(out, "profitable:   %t\n", opp.Profitable)
		if cost, err := c.estimator.EstimateGasCost(cfg.Gas.GasLimit); err == nil {
			fmt.Fprintf(out, "gas cost:     %s wei at %s wei/gas\n", cost, cycle.GasPrice)
		}
		return nil
	},
}

// quoteAccount is the --wallet flag, or the account of PRIVATE_KEY
func quoteAccount(cfg *config.Config) (common.Address, error) {
	if quoteWallet != "" {
		if !common.IsHexAddress(quoteWallet) {
			return common.Address{}, fmt.Errorf("invalid wallet address %q", quoteWallet)
		}
		return common.HexToAddress(quoteWallet), nil
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("set --wallet or a valid PRIVATE_KEY: %w", err)
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}

func init() {
	rootCmd.AddCommand(quoteCmd)
	quoteCmd.Flags().StringVar(&quoteWallet, "wallet", "", "account to quote for (default is the PRIVATE_KEY account)")
}
