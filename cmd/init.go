package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ErbaZZ/wusd-arb/config"

	"github.com/spf13/cobra"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("failed to get user home directory: %w", err)
			}
			path = filepath.Join(home, ".wusd-arb.json")
		}

		if _, err := os.Stat(path); err == nil && !forceInit {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
		if err := config.SaveConfig(config.DefaultConfig(), path); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Wrote config to %s\nFill in contracts and routes before running start.\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&forceInit, "force", false, "overwrite an existing config file")
}
