// Package container provides container runtime detection and management for Neo4j.
package container

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/codegraphhq/codegraph/internal/servicemanager"
)

// ContainerName is the name used for the Neo4j container.
const ContainerName = "codegraph-neo4j"

// Neo4jImage is the Docker image for Neo4j.
const Neo4jImage = "neo4j:5"

// Runtime represents a container runtime.
type Runtime string

const (
	// RuntimeDocker represents the Docker runtime.
	RuntimeDocker Runtime = "docker"
	// RuntimePodman represents the Podman runtime.
	RuntimePodman Runtime = "podman"
	// RuntimeNone represents no available runtime.
	RuntimeNone Runtime = ""
)

// String returns the runtime as a string.
func (r Runtime) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the runtime.
func (r Runtime) DisplayName() string {
	switch r {
	case RuntimeDocker:
		return "Docker"
	case RuntimePodman:
		return "Podman"
	default:
		return "None"
	}
}

// StartOptions configures how to start a Neo4j container.
type StartOptions struct {
	// BoltPort is the host port to map to the container's bolt port (7687).
	BoltPort int
	// HTTPPort is the host port to map to the Neo4j browser port (7474).
	HTTPPort int
	// Password is the initial password for the neo4j user.
	Password string
	// DataDir is the host directory for persistent data.
	// If empty, it defaults to the application config directory (e.g. ~/.config/codegraph/neo4j).
	DataDir string
	// Detach runs the container in the background.
	Detach bool
}

func ensureDataDir(opts StartOptions) (StartOptions, error) {
	if opts.DataDir == "" {
		dataDir, err := servicemanager.GetDataDir()
		if err != nil {
			return opts, fmt.Errorf("failed to resolve Neo4j data dir; %w", err)
		}
		opts.DataDir = dataDir
	}

	if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
		return opts, fmt.Errorf("failed to create Neo4j data dir; %w", err)
	}

	return opts, nil
}

// StartPhase represents the current phase of container startup.
type StartPhase int

const (
	// PhaseCheckingContainer indicates checking if container exists.
	PhaseCheckingContainer StartPhase = iota
	// PhaseContainerExists indicates container already exists.
	PhaseContainerExists
	// PhaseStartingExisting indicates starting an existing container.
	PhaseStartingExisting
	// PhasePullingImage indicates pulling the container image.
	PhasePullingImage
	// PhaseCreatingContainer indicates creating a new container.
	PhaseCreatingContainer
	// PhaseWaitingReady indicates waiting for Neo4j to be ready.
	PhaseWaitingReady
	// PhaseComplete indicates startup is complete.
	PhaseComplete
	// PhaseFailed indicates startup failed.
	PhaseFailed
)

// StartProgress represents a progress update during container startup.
type StartProgress struct {
	Phase   StartPhase
	Message string
	Err     error
}

// IsDockerAvailable checks if Docker is available on the system.
func IsDockerAvailable() bool {
	return isRuntimeAvailable("docker")
}

// IsPodmanAvailable checks if Podman is available on the system.
func IsPodmanAvailable() bool {
	return isRuntimeAvailable("podman")
}

// isRuntimeAvailable checks if a container runtime is available by running its info command.
func isRuntimeAvailable(runtime string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, runtime, "info")
	err := cmd.Run()
	available := err == nil
	slog.Debug("checking runtime availability", "runtime", runtime, "available", available)
	return available
}

// DetectRuntime returns the first available container runtime.
// It prefers Docker over Podman.
func DetectRuntime() Runtime {
	if IsDockerAvailable() {
		return RuntimeDocker
	}
	if IsPodmanAvailable() {
		return RuntimePodman
	}
	return RuntimeNone
}

// AvailableRuntimes returns all available container runtimes.
func AvailableRuntimes() []Runtime {
	var runtimes []Runtime
	if IsDockerAvailable() {
		runtimes = append(runtimes, RuntimeDocker)
	}
	if IsPodmanAvailable() {
		runtimes = append(runtimes, RuntimePodman)
	}
	slog.Debug("available runtimes detected", "count", len(runtimes), "runtimes", runtimes)
	return runtimes
}

// containerExists checks if the Neo4j container exists in the given runtime.
func containerExists(runtime Runtime) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, runtime.String(), "container", "inspect", ContainerName)
	return cmd.Run() == nil
}

// containerIsRunning checks if the Neo4j container is running.
func containerIsRunning(runtime Runtime) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, runtime.String(), "container", "inspect", "-f", "{{.State.Running}}", ContainerName)
	output, err := cmd.Output()
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(output)) == "true"
}

// IsNeo4jRunning checks if the Neo4j container is running in any runtime.
func IsNeo4jRunning() bool {
	return IsNeo4jRunningIn(RuntimeDocker) || IsNeo4jRunningIn(RuntimePodman)
}

// IsNeo4jRunningIn checks if Neo4j is running in the specified runtime.
func IsNeo4jRunningIn(runtime Runtime) bool {
	if runtime == RuntimeNone {
		return false
	}
	return containerIsRunning(runtime)
}

// buildRunArgs builds the arguments for starting a Neo4j container.
func buildRunArgs(opts StartOptions) []string {
	args := []string{"run", "--name", ContainerName}

	if opts.Detach {
		args = append(args, "-d")
	}

	args = append(args, "-p", fmt.Sprintf("%d:7687", opts.BoltPort))
	// Neo4j browser UI port
	args = append(args, "-p", fmt.Sprintf("%d:7474", opts.HTTPPort))

	if opts.Password != "" {
		args = append(args, "-e", fmt.Sprintf("NEO4J_AUTH=neo4j/%s", opts.Password))
	} else {
		args = append(args, "-e", "NEO4J_AUTH=none")
	}

	if opts.DataDir != "" {
		args = append(args, "-v", fmt.Sprintf("%s:/data", opts.DataDir))
	}

	args = append(args, Neo4jImage)
	return args
}

// waitForReady waits for Neo4j to accept bolt connections by running
// cypher-shell inside the container, so no local client is required.
func waitForReady(runtime Runtime, opts StartOptions, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	args := []string{"exec", ContainerName, "cypher-shell"}
	if opts.Password != "" {
		args = append(args, "-u", "neo4j", "-p", opts.Password)
	}
	args = append(args, "RETURN 1;")

	for time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		cmd := exec.CommandContext(ctx, runtime.String(), args...)
		err := cmd.Run()
		cancel()

		if err == nil {
			return nil
		}

		time.Sleep(time.Second)
	}

	return fmt.Errorf("timeout waiting for Neo4j to be ready")
}

// StartNeo4j starts the Neo4j container using the specified runtime.
func StartNeo4j(runtime Runtime, opts StartOptions) error {
	slog.Info("starting Neo4j container", "runtime", runtime, "bolt_port", opts.BoltPort)

	if runtime == RuntimeNone {
		return fmt.Errorf("no container runtime available")
	}

	var err error
	opts, err = ensureDataDir(opts)
	if err != nil {
		return err
	}
	slog.Debug("using Neo4j data directory", "path", opts.DataDir)

	if containerExists(runtime) {
		if containerIsRunning(runtime) {
			slog.Info("Neo4j container already running")
			return nil
		}

		slog.Debug("starting existing container", "name", ContainerName)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		cmd := exec.CommandContext(ctx, runtime.String(), "start", ContainerName)
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("failed to start existing container; %w", err)
		}
	} else {
		args := buildRunArgs(opts)

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		slog.Debug("running container command", "runtime", runtime, "args", args)
		cmd := exec.CommandContext(ctx, runtime.String(), args...)
		if output, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("failed to start container; %s; %w", string(output), err)
		}
	}

	// Neo4j takes a while to accept connections after the process starts.
	slog.Debug("waiting for Neo4j to be ready")
	if err := waitForReady(runtime, opts, 60*time.Second); err != nil {
		return err
	}

	slog.Info("Neo4j container started", "bolt_port", opts.BoltPort)
	return nil
}

// StopNeo4j stops the Neo4j container.
func StopNeo4j(runtime Runtime) error {
	slog.Info("stopping Neo4j container", "runtime", runtime)

	if runtime == RuntimeNone {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, runtime.String(), "stop", ContainerName)
	if err := cmd.Run(); err != nil {
		return err
	}

	slog.Info("Neo4j container stopped")
	return nil
}

// imageExists checks if the Neo4j image exists locally.
func imageExists(runtime Runtime) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, runtime.String(), "image", "inspect", Neo4jImage)
	return cmd.Run() == nil
}

// pullImage pulls the Neo4j image.
func pullImage(runtime Runtime) error {
	slog.Info("pulling Neo4j image", "image", Neo4jImage, "runtime", runtime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cmd := exec.CommandContext(ctx, runtime.String(), "pull", Neo4jImage)
	if err := cmd.Run(); err != nil {
		return err
	}

	return nil
}

// StartNeo4jWithProgress starts the Neo4j container and sends progress
// updates on the channel. The channel is closed when startup completes or fails.
func StartNeo4jWithProgress(runtime Runtime, opts StartOptions, progress chan<- StartProgress) {
	defer close(progress)

	if runtime == RuntimeNone {
		progress <- StartProgress{Phase: PhaseFailed, Err: fmt.Errorf("no container runtime available")}
		return
	}

	var err error
	opts, err = ensureDataDir(opts)
	if err != nil {
		progress <- StartProgress{Phase: PhaseFailed, Err: err}
		return
	}

	progress <- StartProgress{Phase: PhaseCheckingContainer, Message: "Checking for existing container..."}

	if containerExists(runtime) {
		progress <- StartProgress{Phase: PhaseContainerExists, Message: "Found existing container"}

		if containerIsRunning(runtime) {
			progress <- StartProgress{Phase: PhaseComplete, Message: "Neo4j is already running"}
			return
		}

		progress <- StartProgress{Phase: PhaseStartingExisting, Message: "Starting existing container..."}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		cmd := exec.CommandContext(ctx, runtime.String(), "start", ContainerName)
		if err := cmd.Run(); err != nil {
			progress <- StartProgress{Phase: PhaseFailed, Err: fmt.Errorf("failed to start existing container; %w", err)}
			return
		}
	} else {
		if !imageExists(runtime) {
			progress <- StartProgress{Phase: PhasePullingImage, Message: "Pulling Neo4j image (this may take a few minutes)..."}

			if err := pullImage(runtime); err != nil {
				progress <- StartProgress{Phase: PhaseFailed, Err: fmt.Errorf("failed to pull image; %w", err)}
				return
			}
		}

		progress <- StartProgress{Phase: PhaseCreatingContainer, Message: "Creating container..."}

		args := buildRunArgs(opts)

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		cmd := exec.CommandContext(ctx, runtime.String(), args...)
		if output, err := cmd.CombinedOutput(); err != nil {
			progress <- StartProgress{Phase: PhaseFailed, Err: fmt.Errorf("failed to start container; %s; %w", string(output), err)}
			return
		}
	}

	progress <- StartProgress{Phase: PhaseWaitingReady, Message: "Waiting for Neo4j to be ready..."}

	if err := waitForReady(runtime, opts, 60*time.Second); err != nil {
		progress <- StartProgress{Phase: PhaseFailed, Err: err}
		return
	}

	progress <- StartProgress{Phase: PhaseComplete, Message: "Neo4j is ready"}
}
