// Package service implements the service command group, which installs and
// controls the codegraph daemon as a user-level system service.
package service

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codegraphhq/codegraph/internal/config"
	"github.com/codegraphhq/codegraph/internal/servicemanager"
)

// ServiceCmd manages the daemon as a systemd or launchd user service.
var ServiceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage the daemon as a system service",
	Long: "Install, remove, and control the codegraph daemon through the platform " +
		"service manager (systemd user units on Linux, launchd on macOS). The " +
		"installed service runs 'codegraph watch' and restarts it on failure.",
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the daemon service and enable auto-start",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		manager, err := newManager()
		if err != nil {
			return err
		}
		if err := manager.Install(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Service installed and enabled")
		return nil
	},
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Stop and remove the daemon service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		manager, err := newManager()
		if err != nil {
			return err
		}
		if err := manager.Uninstall(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Service removed")
		return nil
	},
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		manager, err := newManager()
		if err != nil {
			return err
		}
		if err := manager.StartDaemon(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Service started")
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the daemon service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		manager, err := newManager()
		if err != nil {
			return err
		}
		if err := manager.StopDaemon(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Service stopped")
		return nil
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the daemon service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		manager, err := newManager()
		if err != nil {
			return err
		}
		if err := manager.Restart(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Service restarted")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon service status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		manager, err := newManager()
		if err != nil {
			return err
		}
		status, err := manager.Status(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Service: %s\n", status.ServiceState)
		if status.IsRunning {
			fmt.Fprintf(out, "Running: yes (pid %d)\n", status.PID)
		} else {
			fmt.Fprintln(out, "Running: no")
		}
		if status.Health != nil {
			fmt.Fprintf(out, "Health:  %s (ready=%t, uptime %s)\n",
				status.Health.Status, status.Health.Ready, status.Health.Uptime)
			for name, comp := range status.Health.Components {
				line := fmt.Sprintf("  %-10s %s", name, comp.Status)
				if comp.Error != "" {
					line += " (" + comp.Error + ")"
				}
				fmt.Fprintln(out, line)
			}
		}
		if status.Error != nil {
			fmt.Fprintf(out, "Error:   %v\n", status.Error)
		}
		return nil
	},
}

func init() {
	ServiceCmd.AddCommand(installCmd, uninstallCmd, startCmd, stopCmd, restartCmd, statusCmd)
}

// newManager builds a platform manager using the daemon endpoint from the
// configuration, falling back to defaults when no config file exists yet.
func newManager() (servicemanager.DaemonManager, error) {
	daemonCfg := config.NewDefaultConfig().Daemon
	if cfg, err := config.Load(); err == nil {
		daemonCfg = cfg.Daemon
	}
	return servicemanager.NewDaemonManager(daemonCfg)
}
