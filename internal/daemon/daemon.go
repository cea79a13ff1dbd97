// Package daemon runs the long-lived ingestion process: it owns the
// pipeline, the filesystem watcher, a health endpoint, and the systemd
// watchdog. Ingestion passes are serialized through a single trigger
// channel so overlapping watcher flushes collapse into one run.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codegraphhq/codegraph/internal/pipeline"
)

// State is the daemon lifecycle state.
type State string

const (
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateDegraded State = "degraded"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
)

// CanTransitionTo reports whether a lifecycle transition is legal.
func (s State) CanTransitionTo(target State) bool {
	switch s {
	case StateStarting:
		return target == StateRunning || target == StateStopped
	case StateRunning:
		return target == StateDegraded || target == StateStopping
	case StateDegraded:
		return target == StateRunning || target == StateStopping
	case StateStopping:
		return target == StateStopped
	default:
		return false
	}
}

// Runner is the slice of the pipeline the daemon drives.
type Runner interface {
	Recover(ctx context.Context, projectID string) (pipeline.RecoverResult, error)
	Process(ctx context.Context, projectID string) (pipeline.Stats, error)
}

// Watcher is the slice of the filesystem watcher the daemon manages.
type Watcher interface {
	Start(ctx context.Context) error
	Stop() error
	Pause()
	Resume()
}

// Config holds daemon settings.
type Config struct {
	ProjectID       string
	HTTPPort        int
	HTTPBind        string
	ShutdownTimeout time.Duration
	PIDFile         string
}

// DefaultConfig returns the default daemon configuration.
func DefaultConfig() Config {
	return Config{
		HTTPPort:        7610,
		HTTPBind:        "127.0.0.1",
		ShutdownTimeout: 30 * time.Second,
		PIDFile:         "~/.config/codegraph/daemon.pid",
	}
}

// Daemon coordinates the ingestion components. Safe for concurrent use.
type Daemon struct {
	config   Config
	runner   Runner
	watcher  Watcher
	health   *HealthManager
	server   *Server
	pidFile  *PIDFile
	watchdog *Watchdog
	logger   *slog.Logger

	mu      sync.RWMutex
	state   State
	trigger chan struct{}
}

// Option configures the Daemon.
type Option func(*Daemon)

// WithWatcher attaches a filesystem watcher to start and stop with the
// daemon.
func WithWatcher(w Watcher) Option {
	return func(d *Daemon) { d.watcher = w }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Daemon) { d.logger = logger }
}

// New creates a daemon around a pipeline runner.
func New(cfg Config, runner Runner, opts ...Option) *Daemon {
	d := &Daemon{
		config:  cfg,
		runner:  runner,
		health:  NewHealthManager(),
		pidFile: NewPIDFile(cfg.PIDFile),
		logger:  slog.Default().With("component", "daemon"),
		state:   StateStopped,
		trigger: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.watchdog = NewWatchdog(func() bool { return d.health.Status().Ready })
	d.server = NewServer(d.health, ServerConfig{Port: cfg.HTTPPort, Bind: cfg.HTTPBind})
	d.server.SetReindexFunc(func(ctx context.Context) { d.Kick() })
	return d
}

// State returns the current lifecycle state.
func (d *Daemon) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Health returns the aggregate health snapshot.
func (d *Daemon) Health() HealthStatus {
	return d.health.Status()
}

// Server returns the HTTP server for endpoint wiring.
func (d *Daemon) Server() *Server {
	return d.server
}

func (d *Daemon) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

// Kick requests an ingestion pass. Non-blocking; a pass already pending
// absorbs the request.
func (d *Daemon) Kick() {
	select {
	case d.trigger <- struct{}{}:
	default:
	}
}

// Start claims the PID file, starts the HTTP server and watcher, and
// blocks running ingestion passes until the context is canceled.
func (d *Daemon) Start(ctx context.Context) error {
	d.setState(StateStarting)

	if err := d.pidFile.CheckAndClaim(); err != nil {
		d.setState(StateStopped)
		return fmt.Errorf("failed to claim PID file; %w", err)
	}
	defer func() { _ = d.pidFile.Remove() }()

	serverErr := make(chan error, 1)
	go func() {
		if err := d.server.Start(ctx); err != nil {
			serverErr <- err
		}
	}()

	d.watchdog.Start(ctx)
	defer d.watchdog.Stop()

	if d.watcher != nil {
		if err := d.watcher.Start(ctx); err != nil {
			d.setState(StateStopped)
			return fmt.Errorf("failed to start watcher; %w", err)
		}
		defer func() { _ = d.watcher.Stop() }()
	}

	d.setState(StateRunning)
	d.logger.Info("daemon started", "project", d.config.ProjectID, "port", d.config.HTTPPort)

	// Crash recovery, then a first full pass over whatever is queued.
	if result, err := d.runner.Recover(ctx, d.config.ProjectID); err != nil {
		d.logger.Error("recovery failed", "error", err)
	} else if result.FilesRecovered > 0 || result.StatesReset > 0 {
		d.logger.Info("recovered interrupted work",
			"recovered", result.FilesRecovered, "reset", result.StatesReset)
	}
	d.Kick()

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err := <-serverErr:
			runErr = fmt.Errorf("http server failed; %w", err)
			break loop
		case <-d.trigger:
			d.runOnce(ctx)
		}
	}

	d.setState(StateStopping)
	d.logger.Info("daemon stopping")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), d.config.ShutdownTimeout)
	defer cancel()
	if err := d.server.Shutdown(shutdownCtx); err != nil {
		d.logger.Error("server shutdown failed", "error", err)
	}

	d.setState(StateStopped)
	return runErr
}

// runOnce runs a single ingestion pass and records its outcome in the
// health manager.
func (d *Daemon) runOnce(ctx context.Context) {
	d.watchdog.Touch()
	start := time.Now()

	stats, err := d.runner.Process(ctx, d.config.ProjectID)
	if err != nil {
		d.logger.Error("ingestion pass failed", "error", err)
		d.health.UpdateComponent("pipeline", ComponentHealth{
			Status: ComponentFailed,
			Error:  err.Error(),
		})
		if d.State() == StateRunning {
			d.setState(StateDegraded)
		}
		return
	}

	d.health.UpdateComponent("pipeline", ComponentHealth{
		Status: ComponentHealthy,
		Details: map[string]any{
			"filesProcessed": stats.FilesProcessed,
			"filesErrored":   stats.FilesErrored,
			"durationMs":     time.Since(start).Milliseconds(),
		},
	})
	if d.State() == StateDegraded {
		d.setState(StateRunning)
	}
	d.watchdog.Touch()
}
