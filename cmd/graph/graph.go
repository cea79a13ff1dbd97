// Package graph implements the graph command group, which manages a local
// Neo4j container for the graph store.
package graph

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/codegraphhq/codegraph/internal/config"
	"github.com/codegraphhq/codegraph/internal/container"
)

var (
	runtimeName string
	httpPort    int
	dataDir     string
)

// GraphCmd manages the local Neo4j container.
var GraphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Manage the local Neo4j container",
	Long: "Start and stop a Neo4j container for the graph store using Docker or " +
		"Podman. The bolt port and credentials come from the graph section of the " +
		"configuration, so the daemon connects to the container without further setup.",
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the Neo4j container",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		rt, err := resolveRuntime()
		if err != nil {
			return err
		}

		opts, err := startOptions()
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Starting Neo4j with %s...\n", rt.DisplayName())
		progress := make(chan container.StartProgress)
		go container.StartNeo4jWithProgress(rt, opts, progress)

		for update := range progress {
			if update.Err != nil {
				return update.Err
			}
			if update.Message != "" {
				fmt.Fprintln(cmd.OutOrStdout(), update.Message)
			}
		}
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the Neo4j container",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		rt, err := resolveRuntime()
		if err != nil {
			return err
		}
		if err := container.StopNeo4j(rt); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Neo4j container stopped")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show Neo4j container status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		out := cmd.OutOrStdout()
		runtimes := container.AvailableRuntimes()
		if len(runtimes) == 0 {
			fmt.Fprintln(out, "No container runtime available (install Docker or Podman)")
			return nil
		}

		for _, rt := range runtimes {
			running := container.IsNeo4jRunningIn(rt)
			state := "stopped"
			if running {
				state = "running"
			}
			fmt.Fprintf(out, "%s: %s is %s\n", rt.DisplayName(), container.ContainerName, state)
		}
		return nil
	},
}

func init() {
	GraphCmd.PersistentFlags().StringVar(&runtimeName, "runtime", "", "container runtime to use (docker or podman, default autodetect)")
	startCmd.Flags().IntVar(&httpPort, "http-port", 7474, "host port for the Neo4j browser UI")
	startCmd.Flags().StringVar(&dataDir, "data-dir", "", "host directory for Neo4j data (default ~/.config/codegraph/neo4j)")
	GraphCmd.AddCommand(startCmd, stopCmd, statusCmd)
}

func resolveRuntime() (container.Runtime, error) {
	switch runtimeName {
	case "":
		rt := container.DetectRuntime()
		if rt == container.RuntimeNone {
			return rt, fmt.Errorf("no container runtime available; install Docker or Podman")
		}
		return rt, nil
	case "docker":
		return container.RuntimeDocker, nil
	case "podman":
		return container.RuntimePodman, nil
	default:
		return container.RuntimeNone, fmt.Errorf("unknown runtime %q", runtimeName)
	}
}

// startOptions derives container settings from the graph configuration,
// falling back to defaults when no config file exists yet.
func startOptions() (container.StartOptions, error) {
	cfg := config.NewDefaultConfig()
	if loaded, err := config.Load(); err == nil {
		cfg = *loaded
	}

	boltPort, err := boltPortFromURI(cfg.Graph.URI)
	if err != nil {
		return container.StartOptions{}, err
	}

	return container.StartOptions{
		BoltPort: boltPort,
		HTTPPort: httpPort,
		Password: cfg.Graph.ResolvePassword(),
		DataDir:  dataDir,
		Detach:   true,
	}, nil
}

// boltPortFromURI extracts the port from a bolt or neo4j URI.
func boltPortFromURI(uri string) (int, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return 0, fmt.Errorf("invalid graph uri %q; %w", uri, err)
	}
	if u.Port() == "" {
		return 7687, nil
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		return 0, fmt.Errorf("invalid graph uri port %q; %w", u.Port(), err)
	}
	return port, nil
}
