// Package recovery implements the recover command.
package recovery

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codegraphhq/codegraph/internal/app"
	"github.com/codegraphhq/codegraph/internal/config"
)

var process bool

// RecoverCmd requeues interrupted and retryable files.
var RecoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Requeue files stuck mid-pipeline or in retryable error",
	Long: "Reset files stuck in an intermediate state (after a crash) back to discovered " +
		"and requeue errored files that still have retry budget. With --process a full " +
		"ingestion pass runs immediately afterwards.",
	Example: `  # Requeue, then process
  codegraph recover --process`,
	RunE: runRecover,
}

func init() {
	RecoverCmd.Flags().BoolVar(&process, "process", false, "run an ingestion pass after recovery")
}

func runRecover(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	a, err := app.New(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	result, err := a.Processor.Recover(ctx, cfg.Project.ID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Recovered %d errored files, reset %d stuck files\n",
		result.FilesRecovered, result.StatesReset)
	if result.FilesInError > 0 {
		fmt.Fprintf(out, "%d files remain in error past their retry budget\n", result.FilesInError)
	}

	if !process {
		return nil
	}

	stats, err := a.Processor.Process(ctx, cfg.Project.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Processed %d files (%d errored) in %dms\n",
		stats.FilesProcessed, stats.FilesErrored, stats.DurationMs)
	return nil
}
