// Package logging manages the process-wide slog setup. Startup begins in
// bootstrap mode (text to stderr) before configuration is available;
// Upgrade switches to fanout logging with a rotating JSON file without
// invalidating logger references already handed out.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	slogmulti "github.com/samber/slog-multi"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation limits for the JSON log file.
const (
	maxLogSizeMB  = 50
	maxLogBackups = 3
	maxLogAgeDays = 30
)

// Manager owns the logger lifecycle. Safe for concurrent use.
type Manager struct {
	handler *SwappableHandler
	logger  *slog.Logger
	level   *slog.LevelVar

	mu      sync.Mutex
	rotator *lumberjack.Logger
}

// NewManager creates a manager in bootstrap mode: text to stderr at info
// level.
func NewManager() *Manager {
	level := new(slog.LevelVar)
	level.Set(DefaultLevel)

	handler := NewSwappableHandler(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return &Manager{
		handler: handler,
		logger:  slog.New(handler),
		level:   level,
	}
}

// Logger returns the logger. The same instance remains valid across
// Upgrade calls.
func (m *Manager) Logger() *slog.Logger {
	return m.logger
}

// Upgrade switches to full mode: text to stderr plus rotating JSON to the
// given file.
func (m *Manager) Upgrade(logFilePath string, level slog.Level) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	dir := filepath.Dir(logFilePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory %q; %w", dir, err)
	}

	if m.rotator != nil {
		_ = m.rotator.Close()
	}
	m.rotator = &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    maxLogSizeMB,
		MaxBackups: maxLogBackups,
		MaxAge:     maxLogAgeDays,
		Compress:   true,
	}

	m.level.Set(level)
	opts := &slog.HandlerOptions{Level: m.level}
	m.handler.Swap(slogmulti.Fanout(
		slog.NewTextHandler(os.Stderr, opts),
		slog.NewJSONHandler(m.rotator, opts),
	))
	return nil
}

// SetLevel changes the level at runtime for all future log calls.
func (m *Manager) SetLevel(level slog.Level) {
	m.level.Set(level)
}

// Close releases the log file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rotator != nil {
		err := m.rotator.Close()
		m.rotator = nil
		return err
	}
	return nil
}
