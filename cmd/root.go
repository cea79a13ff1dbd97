// Package cmd assembles the codegraph command tree.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codegraphhq/codegraph/cmd/graph"
	"github.com/codegraphhq/codegraph/cmd/ingest"
	"github.com/codegraphhq/codegraph/cmd/initialize"
	"github.com/codegraphhq/codegraph/cmd/recovery"
	"github.com/codegraphhq/codegraph/cmd/service"
	"github.com/codegraphhq/codegraph/cmd/status"
	"github.com/codegraphhq/codegraph/cmd/version"
	"github.com/codegraphhq/codegraph/cmd/watch"
	"github.com/codegraphhq/codegraph/internal/config"
	"github.com/codegraphhq/codegraph/internal/logging"
)

// logManager is created in bootstrap mode and upgraded once config loads.
var logManager *logging.Manager

var rootCmd = &cobra.Command{
	Use:   "codegraph",
	Short: "Ingest a document corpus into a searchable property graph",
	Long: "Codegraph parses a corpus of source and document files into a property graph, " +
		"resolves cross-file relationships, enriches content with named entities, and " +
		"generates multi-view vector embeddings for semantic search.\n\n" +
		"Run 'codegraph init' to create a configuration, 'codegraph ingest' for a one-shot " +
		"pass, or 'codegraph watch' to keep the graph in sync with the filesystem.",
	PersistentPreRun: upgradeLogging,
}

func init() {
	logManager = logging.NewManager()

	rootCmd.AddCommand(initialize.InitCmd)
	rootCmd.AddCommand(ingest.IngestCmd)
	rootCmd.AddCommand(watch.WatchCmd)
	rootCmd.AddCommand(status.StatusCmd)
	rootCmd.AddCommand(recovery.RecoverCmd)
	rootCmd.AddCommand(service.ServiceCmd)
	rootCmd.AddCommand(graph.GraphCmd)
	rootCmd.AddCommand(version.VersionCmd)
}

// upgradeLogging switches from bootstrap (stderr) to file logging when a
// config is present. Commands that run without config keep bootstrap mode.
func upgradeLogging(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		return
	}

	level := logging.ParseLevelOrDefault(cfg.LogLevel)
	if err := logManager.Upgrade(config.ExpandHome(cfg.LogFile), level); err != nil {
		logManager.Logger().Warn("failed to enable file logging, continuing with stderr only",
			"error", err)
	}
}

// Execute runs the command tree.
func Execute() error {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	defer func() { _ = logManager.Close() }()

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
