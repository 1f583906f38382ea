package cmd

import (
	"fmt"

	"github.com/ErbaZZ/wusd-arb/storage"
	"github.com/ErbaZZ/wusd-arb/utils"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the trade journal",
	RunE: func(cmd *cobra.Command, args []string) error {
		defer utils.CleanupLogger()
		ctx := cmd.Context()

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if cfg.Journal.Path == "" {
			return fmt.Errorf("journal path is not configured")
		}

		journal, err := storage.Open(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer journal.Close()

		out := cmd.OutOrStdout()
		for _, outcome := range []string{storage.OutcomeSuccess, storage.OutcomeBad, storage.OutcomeFailed, storage.OutcomeClaim} {
			n, err := journal.CountExecutions(ctx, outcome)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%-8s %d\n", outcome+":", n)
		}

		total, err := journal.TotalRealizedProfit(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "realized: %s %s\n", utils.FormatUnits(total, cfg.Strategy.AssetDecimals), cfg.Strategy.AssetSymbol)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
