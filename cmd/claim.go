package cmd

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ErbaZZ/wusd-arb/config"
	"github.com/ErbaZZ/wusd-arb/executor"
	"github.com/ErbaZZ/wusd-arb/storage"
	"github.com/ErbaZZ/wusd-arb/utils"
	"github.com/ErbaZZ/wusd-arb/utils/metrics"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var claimCmd = &cobra.Command{
	Use:   "claim",
	Short: "Send a single claim transaction and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := utils.GetLogger()
		defer utils.CleanupLogger()

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return runClaim(cmd.Context(), cfg, log)
	},
}

func runClaim(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	opts, _, err := executor.NewTransactor(cfg.PrivateKey, big.NewInt(cfg.Network.ChainID))
	if err != nil {
		return err
	}

	c, err := dialChain(ctx, cfg, opts.From, log)
	if err != nil {
		return err
	}
	defer c.Close()

	m := metrics.NewExecutionMetrics(metricsNamespace, metrics.Registry())
	exec, err := newExecutor(cfg, c, opts, nil, m, log)
	if err != nil {
		return err
	}

	journal, err := storage.Open(cfg.Journal.Path)
	if err != nil {
		return err
	}
	defer journal.Close()

	hash, claimErr := exec.Claim(ctx)
	entry := &storage.Execution{ClaimTx: hash, Outcome: storage.OutcomeClaim, Err: claimErr}
	if err := journal.RecordExecution(ctx, entry); err != nil {
		log.Error("Failed to journal claim", zap.Error(err))
	}
	if claimErr != nil {
		return claimErr
	}

	log.Info("Claim confirmed", zap.String("tx", hash.Hex()))
	return nil
}

func init() {
	rootCmd.AddCommand(claimCmd)
}
