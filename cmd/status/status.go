// Package status implements the status command.
package status

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/codegraphhq/codegraph/internal/app"
	"github.com/codegraphhq/codegraph/internal/config"
	"github.com/codegraphhq/codegraph/internal/daemonclient"
	"github.com/codegraphhq/codegraph/internal/model"
)

var asJSON bool

// StatusCmd reports ingestion progress.
var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show ingestion progress for the project",
	Long: "Show per-state file counts and overall progress. A running daemon is asked " +
		"first; without one the graph is queried directly.",
	Example: `  # Show progress
  codegraph status`,
	RunE: runStatus,
}

func init() {
	StatusCmd.Flags().BoolVar(&asJSON, "json", false, "print status as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Prefer the daemon's view when one is running.
	dc := daemonclient.New(cfg.Daemon)
	if payload, err := dc.Status(ctx); err == nil {
		return printPayload(cmd, payload)
	}

	a, err := app.New(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	stats, err := a.States.StateStats(ctx, cfg.Project.ID)
	if err != nil {
		return err
	}
	progress, err := a.States.GetProgress(ctx, cfg.Project.ID)
	if err != nil {
		return err
	}

	states := make(map[string]any, len(stats))
	for s, n := range stats {
		states[string(s)] = n
	}
	return printPayload(cmd, map[string]any{
		"project":    cfg.Project.ID,
		"states":     states,
		"processed":  progress.Processed,
		"total":      progress.Total,
		"percentage": progress.Percentage,
	})
}

func printPayload(cmd *cobra.Command, payload map[string]any) error {
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	}

	fmt.Fprintf(out, "Project: %v\n", payload["project"])
	if states, ok := payload["states"].(map[string]any); ok {
		names := stateOrder(states)
		for _, name := range names {
			fmt.Fprintf(out, "  %-12s %v\n", name, states[name])
		}
	}
	fmt.Fprintf(out, "Progress: %v of %v files (%.1f%%)\n",
		payload["processed"], payload["total"], toFloat(payload["percentage"]))
	return nil
}

// stateOrder lists known states in lifecycle order, then anything else.
func stateOrder(states map[string]any) []string {
	lifecycle := []string{
		string(model.StateDiscovered), string(model.StateParsing),
		string(model.StateParsed), string(model.StateRelations),
		string(model.StateLinked), string(model.StateEntities),
		string(model.StateEmbedding), string(model.StateEmbedded),
		string(model.StateError),
	}

	var names []string
	seen := make(map[string]bool)
	for _, name := range lifecycle {
		if _, ok := states[name]; ok {
			names = append(names, name)
			seen[name] = true
		}
	}
	var rest []string
	for name := range states {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}
