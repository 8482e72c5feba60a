package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/airlabs/trustplane/internal/scanner"
)

var scanSensitivity string

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringVarP(&scanSensitivity, "sensitivity", "s", "medium", "Blocking sensitivity: low, medium, or high")
}

var scanCmd = &cobra.Command{
	Use:   "scan [text]",
	Short: "Scan text for prompt-manipulation patterns",
	Long:  "Scores text against the weighted injection rule library and prints the verdict.\nReads stdin when no argument is given. Exits 1 when the text would be blocked.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	sens, ok := scanner.ParseSensitivity(scanSensitivity)
	if !ok {
		return fmt.Errorf("invalid sensitivity %q (want low, medium, or high)", scanSensitivity)
	}
	sc, err := scanner.New(sens)
	if err != nil {
		return err
	}

	var text string
	if len(args) == 1 {
		text = args[0]
	} else {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = string(data)
	}

	result := sc.Scan(text)
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	fmt.Println(string(data))

	if result.Blocked {
		os.Exit(1)
	}
	return nil
}
