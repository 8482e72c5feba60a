package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/airlabs/trustplane/internal/config"
)

var initForce bool

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default trustplane config file",
	Long:  "Writes the built-in defaults to the config path (default ~/.trustplane/config.yaml)\nso the policy rules, consent mode, and scanner sensitivity can be edited in place.",
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}

	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	cfg := config.Default()
	cfg.Ledger.LocalPath = filepath.Join(filepath.Dir(path), "audit.jsonl")
	if err := config.Write(cfg, path); err != nil {
		return err
	}

	fmt.Printf("wrote %s\n", path)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  trustplane risk delete_user     # check policy classification")
	fmt.Println("  trustplane scan 'some text'     # try the injection scanner")
	fmt.Println("  trustplane mcp                  # serve the primitives over MCP")
	return nil
}
