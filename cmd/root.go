package cmd

import (
	"context"

	"github.com/ErbaZZ/wusd-arb/utils"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "wusd-arb",
	Short: "A CLI bot for the USDC/WUSD mint and redeem arbitrage",
	Long: `A CLI bot that follows new blocks, sizes the USDC -> WUSD -> redeem
cycle with a bisection search over the pool reserves and executes it through
the arbitrage contract when the quoted profit clears the threshold.`,
	SilenceUsage: true,
}

func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.wusd-arb.json)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func initConfig() {
	utils.InitLogger(debug)
}
