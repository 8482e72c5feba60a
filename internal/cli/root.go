package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "trustplane",
	Short: "Trust layer for AI agent pipelines",
	Long:  "Interposes on an agent's tool and model calls: tamper-evident audit trail, reversible tokenization of secrets, risk-tiered consent gating, and prompt-injection scanning.",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config YAML (default ~/.trustplane/config.yaml)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
