package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/airlabs/trustplane"
	"github.com/airlabs/trustplane/internal/config"
)

func init() {
	rootCmd.AddCommand(riskCmd)
}

var riskCmd = &cobra.Command{
	Use:   "risk <tool-name>",
	Short: "Classify a tool name's risk level",
	Long:  "Evaluates the configured risk policy for a tool name and reports the level\nand whether the consent gate would require approval. Nothing is recorded.",
	Args:  cobra.ExactArgs(1),
	RunE:  runRisk,
}

func runRisk(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	// Risk classification needs no ledger or vault.
	cfg.Ledger.Enabled = false
	cfg.Vault.Enabled = false
	cfg.Injection.Enabled = false

	core, err := trustplane.New(cfg)
	if err != nil {
		return err
	}
	defer core.Close()

	gate := core.Gate()
	if gate == nil {
		return fmt.Errorf("consent gate is disabled in config")
	}

	tool := args[0]
	fmt.Printf("%s: risk=%s consent_required=%v\n",
		tool, gate.ClassifyRisk(tool), gate.RequiresConsent(tool))
	return nil
}
