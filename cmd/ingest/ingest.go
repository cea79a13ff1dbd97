// Package ingest implements the one-shot ingestion command.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/codegraphhq/codegraph/internal/app"
	"github.com/codegraphhq/codegraph/internal/cmdutil"
	"github.com/codegraphhq/codegraph/internal/config"
	"github.com/codegraphhq/codegraph/internal/model"
	"github.com/codegraphhq/codegraph/internal/pipeline"
	"github.com/codegraphhq/codegraph/internal/source"
	"github.com/codegraphhq/codegraph/internal/tui"
)

var (
	repoURL      string
	archivePath  string
	singleFile   string
	asJSON       bool
	showProgress bool
)

// IngestCmd runs one full ingestion pass.
var IngestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run one ingestion pass over the project",
	Long: "Scan the project root, mark changed files discovered, and drive them through " +
		"parsing, relationship resolution, entity extraction and embedding.\n\n" +
		"With --repo or --archive the contents of a repository archive are ingested as " +
		"virtual files instead; they exist only in the graph.",
	Example: `  # Ingest the configured project root
  codegraph ingest

  # Re-ingest a single file
  codegraph ingest --file docs/setup.md

  # Ingest a GitHub repository archive
  codegraph ingest --repo https://github.com/acme/docs/archive/refs/heads/main.zip`,
	RunE: runIngest,
}

func init() {
	IngestCmd.Flags().StringVar(&repoURL, "repo", "", "ingest a remote repository archive (zip URL)")
	IngestCmd.Flags().StringVar(&archivePath, "archive", "", "ingest a local zip archive")
	IngestCmd.Flags().StringVar(&singleFile, "file", "", "re-ingest a single file by project-relative path")
	IngestCmd.Flags().BoolVar(&asJSON, "json", false, "print stats as JSON")
	IngestCmd.Flags().BoolVar(&showProgress, "progress", false, "show a live progress view")
	IngestCmd.MarkFlagsMutuallyExclusive("repo", "archive", "file")
	IngestCmd.MarkFlagsMutuallyExclusive("json", "progress")
}

func runIngest(cmd *cobra.Command, args []string) error {
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

	var stats pipeline.Stats
	switch {
	case repoURL != "":
		stats, err = ingestRemote(cmd, a, cfg)
	case archivePath != "":
		stats, err = ingestArchive(cmd, a, cfg)
	case singleFile != "":
		stats, err = a.Processor.ProcessFile(ctx, cfg.Project.ID, model.FileUUID(cfg.Project.ID, singleFile))
	default:
		stats, err = ingestDisk(cmd, a, cfg)
	}
	if err != nil {
		return err
	}

	return printStats(cmd, stats)
}

func ingestDisk(cmd *cobra.Command, a *app.App, cfg *config.Config) (pipeline.Stats, error) {
	ctx := cmd.Context()

	src := &source.DiskSource{
		Root:    config.ExpandHome(cfg.Project.Root),
		Include: cfg.Project.Include,
		Exclude: cfg.Project.Exclude,
	}
	entries, err := src.Scan(ctx)
	if err != nil {
		return pipeline.Stats{}, err
	}

	result, err := a.States.MarkDiscoveredBatch(ctx, cfg.Project.ID, entries)
	if err != nil {
		return pipeline.Stats{}, err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Scanned %d files: %d new, %d changed, %d unchanged\n",
		len(entries), result.Created, result.Reset, result.Skipped)

	if showProgress {
		return processWithProgress(cmd, a, cfg)
	}
	return a.Processor.Process(ctx, cfg.Project.ID)
}

// processWithProgress runs the pass in the background while a live view
// polls state counts from the graph.
func processWithProgress(cmd *cobra.Command, a *app.App, cfg *config.Config) (pipeline.Stats, error) {
	ctx := cmd.Context()

	model := tui.NewProgress(ctx, func(ctx context.Context) (tui.Snapshot, error) {
		stats, err := a.States.StateStats(ctx, cfg.Project.ID)
		if err != nil {
			return tui.Snapshot{}, err
		}
		progress, err := a.States.GetProgress(ctx, cfg.Project.ID)
		if err != nil {
			return tui.Snapshot{}, err
		}
		states := make(map[string]int, len(stats))
		for s, n := range stats {
			states[string(s)] = n
		}
		return tui.Snapshot{
			States:     states,
			Processed:  progress.Processed,
			Total:      progress.Total,
			Percentage: progress.Percentage,
		}, nil
	})

	program := tea.NewProgram(model)

	var stats pipeline.Stats
	var runErr error
	go func() {
		stats, runErr = a.Processor.Process(ctx, cfg.Project.ID)
		program.Send(tui.DoneMsg{Err: runErr})
	}()

	if _, err := program.Run(); err != nil {
		return stats, err
	}
	return stats, runErr
}

func ingestRemote(cmd *cobra.Command, a *app.App, cfg *config.Config) (pipeline.Stats, error) {
	ctx := cmd.Context()

	src := source.NewRemoteRepoSource(repoURL, cfg.Project.Include, cfg.Project.Exclude)
	if err := src.Validate(ctx); err != nil {
		return pipeline.Stats{}, err
	}
	entries, err := src.Fetch(ctx)
	if err != nil {
		return pipeline.Stats{}, err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Fetched %d files from %s\n", len(entries), repoURL)

	return a.Processor.IngestVirtualFiles(ctx, cfg.Project.ID, virtualFiles(entries), nil)
}

func ingestArchive(cmd *cobra.Command, a *app.App, cfg *config.Config) (pipeline.Stats, error) {
	ctx := cmd.Context()

	path, err := cmdutil.ResolvePath(archivePath)
	if err != nil {
		return pipeline.Stats{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return pipeline.Stats{}, fmt.Errorf("failed to read archive; %w", err)
	}
	entries, err := source.ExtractZip(data, cfg.Project.Include, cfg.Project.Exclude)
	if err != nil {
		return pipeline.Stats{}, err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Extracted %d files from %s\n", len(entries), archivePath)

	return a.Processor.IngestVirtualFiles(ctx, cfg.Project.ID, virtualFiles(entries), nil)
}

func virtualFiles(entries []source.VirtualEntry) []pipeline.VirtualFile {
	files := make([]pipeline.VirtualFile, len(entries))
	for i, e := range entries {
		files[i] = pipeline.VirtualFile{
			Path:     e.Path,
			Content:  e.Content,
			Metadata: e.Metadata,
		}
	}
	return files
}

func printStats(cmd *cobra.Command, stats pipeline.Stats) error {
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	fmt.Fprintf(out, "Processed %d files (%d skipped, %d errored) in %dms\n",
		stats.FilesProcessed, stats.FilesSkipped, stats.FilesErrored, stats.DurationMs)
	if stats.EntitiesCreated > 0 || stats.RelationsCreated > 0 {
		fmt.Fprintf(out, "Entities: %d created, %d relations\n",
			stats.EntitiesCreated, stats.RelationsCreated)
	}
	fmt.Fprintf(out, "Embeddings generated: %d\n", stats.EmbeddingsGenerated)
	return nil
}
