// Package version implements the version command.
package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codegraphhq/codegraph/internal/version"
)

// VersionCmd displays version and build information.
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display version and build information",
	Long: "Display the semantic version, git commit hash and build date of the " +
		"current codegraph binary.",
	Example: `  # Display version information
  codegraph version`,
	RunE: runVersion,
}

func runVersion(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	fmt.Fprintln(cmd.OutOrStdout(), version.Get().String())
	return nil
}
