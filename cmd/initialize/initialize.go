// Package initialize implements the init command.
package initialize

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/codegraphhq/codegraph/internal/cmdutil"
	"github.com/codegraphhq/codegraph/internal/config"
)

var (
	projectRoot string
	projectID   string
	force       bool
)

// InitCmd creates a starter configuration file.
var InitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter configuration file",
	Long: "Create a configuration file at ~/.config/codegraph/config.yaml, populated " +
		"with defaults and the given project root. Existing configurations are " +
		"preserved unless --force is set.",
	Example: `  # Initialize for the current directory
  codegraph init --root .

  # Initialize a named project
  codegraph init --root ~/docs --project docs`,
	RunE: runInit,
}

func init() {
	InitCmd.Flags().StringVar(&projectRoot, "root", ".", "project root directory to ingest")
	InitCmd.Flags().StringVar(&projectID, "project", "", "project identifier (defaults to the root directory name)")
	InitCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing configuration")
}

func runInit(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	path := config.DefaultConfigPath()
	if config.ConfigExists() && !force {
		return fmt.Errorf("config already exists at %s; use --force to overwrite", path)
	}

	absRoot, err := cmdutil.ResolvePath(projectRoot)
	if err != nil {
		return fmt.Errorf("failed to resolve project root; %w", err)
	}

	id := projectID
	if id == "" {
		id = filepath.Base(absRoot)
	}

	cfg := config.NewDefaultConfig()
	cfg.Project.ID = id
	cfg.Project.Root = absRoot

	if err := config.Write(&cfg, path); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
	fmt.Fprintf(cmd.OutOrStdout(), "Project %q rooted at %s\n", id, absRoot)
	return nil
}
