package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"invertix/internal/ledger"
)

var runsOutDir string

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs from an output directory's ledger",
	Long: `List the runs recorded in an output directory's ledger as JSON, newest
first. Every pipeline invocation writes a run row plus per-job and
per-stage outcome rows, so interrupted and partial runs stay auditable.

Examples:
  # List all runs against an inverted tree
  invertix runs -o inverted/

  # Parse specific fields with jq
  invertix runs -o inverted/ | jq '.[].status'`,
	RunE: runRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().StringVarP(&runsOutDir, "outdir", "o", "",
		"output directory holding the ledger (required)")
	_ = runsCmd.MarkFlagRequired("outdir")
}

func runRuns(_ *cobra.Command, _ []string) error {
	path := filepath.Join(runsOutDir, cfg.Ledger.Filename)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("no ledger at %s: %w", path, err)
	}

	led, err := ledger.Open(path)
	if err != nil {
		return fmt.Errorf("opening run ledger: %w", err)
	}
	defer func() { _ = led.Close() }()

	runs, err := led.Runs()
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}
	if runs == nil {
		runs = []ledger.Run{}
	}

	out, err := json.MarshalIndent(runs, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding runs: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
