package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/airlabs/trustplane"
	"github.com/airlabs/trustplane/internal/config"
	"github.com/airlabs/trustplane/internal/mcp"
)

var mcpWatch bool

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().BoolVar(&mcpWatch, "watch", false, "Reload policy and scanner settings when the config file changes")
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the trustplane MCP server on stdio",
	Long:  "Exposes trust primitives as MCP tools (trust_check, trust_scan, trust_tokenize,\ntrust_detokenize, trust_audit_verify, trust_audit_stats) over stdio transport.",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, hash, err := config.LoadWithHash(configPath)
	if err != nil {
		return err
	}

	core, err := trustplane.New(cfg)
	if err != nil {
		return err
	}
	defer core.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if mcpWatch {
		// Reload swaps the gate and scanner; ledger and vault state survives.
		reloader, err := config.NewReloader(configPath, func(next *config.Config) {
			if err := core.Reload(next); err != nil {
				fmt.Fprintf(os.Stderr, "mcp: reload rejected, keeping previous config: %v\n", err)
				return
			}
			fmt.Fprintf(os.Stderr, "mcp: config reloaded\n")
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "mcp: config watch unavailable: %v\n", err)
		} else {
			go reloader.Run(ctx)
		}
	}

	fmt.Fprintf(os.Stderr, "trustplane mcp: serving on stdio (policy %s)\n", hash)
	return mcp.New(core).Run(ctx)
}
