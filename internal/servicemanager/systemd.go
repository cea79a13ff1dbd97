package servicemanager

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"

	"github.com/codegraphhq/codegraph/internal/daemonclient"
)

const (
	// systemdServiceName is the systemd service name.
	systemdServiceName = "codegraph.service"
)

// systemdUnitTemplate is the template for the systemd unit file. Type=notify
// with WatchdogSec matches the daemon's sd_notify integration: the daemon
// stops pinging when the pipeline is unhealthy and systemd restarts it.
const systemdUnitTemplate = `[Unit]
Description=codegraph Daemon - Code Graph Ingestion Watcher
After=network.target

[Service]
Type=notify
ExecStart={{.BinaryPath}} watch
WatchdogSec=90
Restart=on-failure
RestartSec=5
StartLimitBurst=5
StartLimitIntervalSec=60

[Install]
WantedBy=default.target
`

// systemdManager implements DaemonManager for Linux using systemd user units.
type systemdManager struct {
	executor CommandExecutor
	control  *daemonclient.Client
}

func newSystemdManager(executor CommandExecutor, control *daemonclient.Client) *systemdManager {
	return &systemdManager{
		executor: executor,
		control:  control,
	}
}

// getUnitPath returns the path to the systemd user unit file.
func getUnitPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory; %w", err)
	}
	return filepath.Join(home, ".config", "systemd", "user", systemdServiceName), nil
}

// generateUnitFile generates the systemd unit file content.
func generateUnitFile() (string, error) {
	data := struct {
		BinaryPath string
	}{
		BinaryPath: GetBinaryPath(),
	}

	tmpl, err := template.New("unit").Parse(systemdUnitTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse unit template; %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute unit template; %w", err)
	}

	return buf.String(), nil
}

// Install writes the systemd unit file and enables auto-start.
func (m *systemdManager) Install(ctx context.Context) error {
	unitPath, err := getUnitPath()
	if err != nil {
		return err
	}

	content, err := generateUnitFile()
	if err != nil {
		return err
	}

	unitDir := filepath.Dir(unitPath)
	if err := os.MkdirAll(unitDir, 0755); err != nil {
		return fmt.Errorf("failed to create systemd user directory; %w", err)
	}

	if err := os.WriteFile(unitPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write unit file; %w", err)
	}

	_, err = m.executor.Run(ctx, "systemctl", "--user", "daemon-reload")
	if err != nil {
		return fmt.Errorf("failed to reload systemd daemon; %w", err)
	}

	_, err = m.executor.Run(ctx, "systemctl", "--user", "enable", systemdServiceName)
	if err != nil {
		return fmt.Errorf("failed to enable service; %w", err)
	}

	return nil
}

// Uninstall stops the service, disables auto-start, and removes the unit file.
func (m *systemdManager) Uninstall(ctx context.Context) error {
	unitPath, err := getUnitPath()
	if err != nil {
		return err
	}

	// Stop and disable, ignoring errors if not running or not enabled.
	_, _ = m.executor.Run(ctx, "systemctl", "--user", "stop", systemdServiceName)
	_, _ = m.executor.Run(ctx, "systemctl", "--user", "disable", systemdServiceName)

	if err := os.Remove(unitPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove unit file; %w", err)
	}

	_, _ = m.executor.Run(ctx, "systemctl", "--user", "daemon-reload")

	return nil
}

// StartDaemon starts the daemon via systemctl.
func (m *systemdManager) StartDaemon(ctx context.Context) error {
	_, err := m.executor.Run(ctx, "systemctl", "--user", "start", systemdServiceName)
	if err != nil {
		return fmt.Errorf("failed to start service; %w", err)
	}
	return nil
}

// StopDaemon stops the daemon via systemctl.
func (m *systemdManager) StopDaemon(ctx context.Context) error {
	_, err := m.executor.Run(ctx, "systemctl", "--user", "stop", systemdServiceName)
	if err != nil {
		return fmt.Errorf("failed to stop service; %w", err)
	}
	return nil
}

// Restart stops and starts the daemon.
func (m *systemdManager) Restart(ctx context.Context) error {
	_, err := m.executor.Run(ctx, "systemctl", "--user", "restart", systemdServiceName)
	if err != nil {
		return fmt.Errorf("failed to restart service; %w", err)
	}
	return nil
}

// Status returns the current daemon status.
func (m *systemdManager) Status(ctx context.Context) (DaemonStatus, error) {
	status := DaemonStatus{
		ServiceState: ServiceStateNotInstalled,
	}

	installed, err := m.IsInstalled()
	if err != nil {
		status.Error = err
		return status, nil
	}

	if !installed {
		return status, nil
	}

	output, err := m.executor.Run(ctx, "systemctl", "--user", "show", systemdServiceName,
		"--property=ActiveState,MainPID,UnitFileState")
	if err != nil {
		// Installed but systemctl failed.
		status.ServiceState = ServiceStateDisabled
		return status, nil
	}

	status.ServiceState, status.PID, status.IsRunning = parseSystemctlOutput(string(output))

	if status.IsRunning {
		health, err := fetchDaemonHealth(ctx, m.control)
		if err == nil {
			status.Health = health
		}
	}

	return status, nil
}

// IsInstalled checks if the unit file exists.
func (m *systemdManager) IsInstalled() (bool, error) {
	unitPath, err := getUnitPath()
	if err != nil {
		return false, err
	}

	_, err = os.Stat(unitPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// parseSystemctlOutput parses the output of systemctl show.
// Returns service state, PID, and whether the service is running.
func parseSystemctlOutput(output string) (ServiceState, int, bool) {
	state := ServiceStateDisabled
	pid := 0
	running := false

	lines := strings.Split(strings.TrimSpace(output), "\n")

	for _, line := range lines {
		line = strings.TrimSpace(line)
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := parts[0]
		value := parts[1]

		switch key {
		case "ActiveState":
			if value == "active" || value == "activating" {
				running = true
			}
		case "MainPID":
			if p, err := strconv.Atoi(value); err == nil && p > 0 {
				pid = p
			}
		case "UnitFileState":
			switch value {
			case "enabled", "enabled-runtime":
				state = ServiceStateEnabled
			case "disabled":
				state = ServiceStateDisabled
			}
		}
	}

	return state, pid, running
}
