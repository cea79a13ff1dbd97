// Package watch implements the daemon command: watch the project tree and
// keep the graph current.
package watch

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codegraphhq/codegraph/internal/app"
	"github.com/codegraphhq/codegraph/internal/config"
	"github.com/codegraphhq/codegraph/internal/daemon"
	"github.com/codegraphhq/codegraph/internal/source"
	"github.com/codegraphhq/codegraph/internal/watcher"
)

// WatchCmd runs the ingestion daemon in the foreground.
var WatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the project and keep the graph in sync",
	Long: "Run the ingestion daemon in the foreground: an initial pass brings the graph " +
		"current, then filesystem changes are debounced and ingested as they happen. " +
		"Health and control endpoints are served over HTTP; under systemd the watchdog " +
		"protocol is honored.",
	Example: `  # Run in the foreground until interrupted
  codegraph watch`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	// The watcher kicks the daemon on every flush; the daemon is created
	// after it, so the callback closes over a pointer filled in below.
	var d *daemon.Daemon
	var opts []daemon.Option
	var w *watcher.Watcher

	if cfg.Watcher.Enabled {
		w, err = watcher.New(a.Client, cfg.Project.ID, config.ExpandHome(cfg.Project.Root),
			watcher.WithDebounce(time.Duration(cfg.Watcher.DebounceMs)*time.Millisecond),
			watcher.WithDeleteGrace(time.Duration(cfg.Watcher.DeleteGraceMs)*time.Millisecond),
			watcher.WithMatcher(source.NewMatcher(cfg.Project.Include, cfg.Project.Exclude)),
			watcher.WithOnFlush(func(ctx context.Context) { d.Kick() }),
		)
		if err != nil {
			return err
		}
		opts = append(opts, daemon.WithWatcher(w))
	}

	d = daemon.New(daemon.Config{
		ProjectID:       cfg.Project.ID,
		HTTPPort:        cfg.Daemon.HTTPPort,
		HTTPBind:        cfg.Daemon.HTTPBind,
		ShutdownTimeout: time.Duration(cfg.Daemon.ShutdownTimeout) * time.Second,
		PIDFile:         cfg.Daemon.PIDFile,
	}, a.Processor, opts...)
	if w != nil {
		d.Server().SetPauseFuncs(w.Pause, w.Resume)
	}

	d.Server().SetStatusFunc(func(ctx context.Context) (any, error) {
		stats, err := a.States.StateStats(ctx, cfg.Project.ID)
		if err != nil {
			return nil, err
		}
		progress, err := a.States.GetProgress(ctx, cfg.Project.ID)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"project":    cfg.Project.ID,
			"states":     stats,
			"processed":  progress.Processed,
			"total":      progress.Total,
			"percentage": progress.Percentage,
		}, nil
	})

	return d.Start(ctx)
}
