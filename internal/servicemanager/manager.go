package servicemanager

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/codegraphhq/codegraph/internal/config"
	"github.com/codegraphhq/codegraph/internal/daemon"
	"github.com/codegraphhq/codegraph/internal/daemonclient"
)

// ServiceState represents the installation state of the service.
type ServiceState string

const (
	// ServiceStateEnabled indicates the service is installed and enabled for auto-start.
	ServiceStateEnabled ServiceState = "enabled"

	// ServiceStateDisabled indicates the service is installed but not enabled for auto-start.
	ServiceStateDisabled ServiceState = "disabled"

	// ServiceStateNotInstalled indicates the service is not installed.
	ServiceStateNotInstalled ServiceState = "not-installed"
)

// String returns the service state as a string.
func (s ServiceState) String() string {
	return string(s)
}

// DaemonStatus represents the current status of the daemon service.
type DaemonStatus struct {
	// IsRunning indicates whether the daemon process is running.
	IsRunning bool

	// PID is the process ID of the daemon (0 if not running).
	PID int

	// ServiceState indicates the installation state of the service.
	ServiceState ServiceState

	// Health contains the daemon health from /readyz (nil if not running or unreachable).
	Health *daemon.HealthStatus

	// Error contains any error encountered while getting status.
	Error error
}

// DaemonManager provides platform-agnostic daemon service management.
type DaemonManager interface {
	// Install writes the service file and enables auto-start.
	Install(ctx context.Context) error

	// Uninstall stops the service, disables auto-start, and removes the service file.
	Uninstall(ctx context.Context) error

	// StartDaemon starts the daemon via the system service manager.
	StartDaemon(ctx context.Context) error

	// StopDaemon stops the daemon via the system service manager.
	StopDaemon(ctx context.Context) error

	// Restart stops and starts the daemon.
	Restart(ctx context.Context) error

	// Status returns detailed daemon status including health.
	Status(ctx context.Context) (DaemonStatus, error)

	// IsInstalled checks if the service file exists.
	IsInstalled() (bool, error)
}

// CommandExecutor abstracts command execution for testability.
type CommandExecutor interface {
	// Run executes a command and returns its combined output.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// defaultExecutor implements CommandExecutor using os/exec.
type defaultExecutor struct{}

func (e *defaultExecutor) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

// NewCommandExecutor returns the default command executor.
func NewCommandExecutor() CommandExecutor {
	return &defaultExecutor{}
}

// NewDaemonManager returns the platform-specific DaemonManager implementation.
// The daemon config locates the control endpoint for health checks.
// Returns an error if the platform is not supported.
func NewDaemonManager(cfg config.DaemonConfig) (DaemonManager, error) {
	return NewDaemonManagerWithExecutor(cfg, NewCommandExecutor())
}

// NewDaemonManagerWithExecutor returns a DaemonManager with a custom command
// executor. This is primarily used for testing.
func NewDaemonManagerWithExecutor(cfg config.DaemonConfig, executor CommandExecutor) (DaemonManager, error) {
	platform := DetectPlatform()
	if !IsPlatformSupported(platform) {
		return nil, fmt.Errorf("platform %s is not supported", platform)
	}

	control := daemonclient.New(cfg)

	switch platform {
	case PlatformMacOS:
		return newLaunchdManager(executor, control), nil
	case PlatformLinux:
		return newSystemdManager(executor, control), nil
	default:
		return nil, fmt.Errorf("unexpected platform: %s", platform)
	}
}

// fetchDaemonHealth queries the daemon's /readyz endpoint through the control client.
func fetchDaemonHealth(ctx context.Context, control *daemonclient.Client) (*daemon.HealthStatus, error) {
	if control == nil {
		return nil, fmt.Errorf("no control client configured")
	}
	return control.Ready(ctx)
}
