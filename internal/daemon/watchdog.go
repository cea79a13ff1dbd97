package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	sd "github.com/coreos/go-systemd/v22/daemon"
)

// Watchdog integrates with the systemd watchdog protocol. Outside systemd
// (no WATCHDOG_USEC) it degrades to READY/STOPPING notifications only, which
// sd_notify silently drops when NOTIFY_SOCKET is unset.
type Watchdog struct {
	healthy  func() bool
	interval time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	lastSeen time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewWatchdog creates a watchdog gated on the given health predicate. Pings
// stop when the predicate reports unhealthy, letting systemd restart us.
func NewWatchdog(healthy func() bool) *Watchdog {
	interval, err := sd.SdWatchdogEnabled(false)
	if err != nil {
		interval = 0
	}
	return &Watchdog{
		healthy:  healthy,
		interval: interval,
		logger:   slog.Default().With("component", "watchdog"),
		stopCh:   make(chan struct{}),
	}
}

// Interval returns the watchdog interval, zero when not under systemd.
func (w *Watchdog) Interval() time.Duration {
	return w.interval
}

// Touch records liveness; called by the daemon around ingestion passes.
func (w *Watchdog) Touch() {
	w.mu.Lock()
	w.lastSeen = time.Now()
	w.mu.Unlock()
}

// Start sends READY and, under systemd, begins watchdog pings at half the
// configured interval.
func (w *Watchdog) Start(ctx context.Context) {
	_, _ = sd.SdNotify(false, sd.SdNotifyReady)
	if w.interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(w.interval / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return
			case <-ticker.C:
				if !w.healthy() {
					w.logger.Warn("skipping watchdog ping while unhealthy")
					continue
				}
				_, _ = sd.SdNotify(false, sd.SdNotifyWatchdog)
			}
		}
	}()
}

// Stop sends STOPPING and halts the ping loop.
func (w *Watchdog) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		_, _ = sd.SdNotify(false, sd.SdNotifyStopping)
	})
}
