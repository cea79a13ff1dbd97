package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
		ok    bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"Warn", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"verbose", DefaultLevel, false},
		{"", DefaultLevel, false},
	}
	for _, tt := range tests {
		level, ok := ParseLevel(tt.input)
		assert.Equal(t, tt.want, level, tt.input)
		assert.Equal(t, tt.ok, ok, tt.input)
	}
}

func TestSwappableHandler_SwapReachesExistingLogger(t *testing.T) {
	var first, second bytes.Buffer
	sh := NewSwappableHandler(slog.NewTextHandler(&first, nil))
	logger := slog.New(sh)

	logger.Info("before swap")
	sh.Swap(slog.NewTextHandler(&second, nil))
	logger.Info("after swap")

	assert.Contains(t, first.String(), "before swap")
	assert.NotContains(t, first.String(), "after swap")
	assert.Contains(t, second.String(), "after swap")
}

func TestSwappableHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	sh := NewSwappableHandler(slog.NewTextHandler(&buf, nil))

	child := sh.WithAttrs([]slog.Attr{slog.String("component", "pipeline")})
	rec := slog.NewRecord(time.Now(), slog.LevelInfo, "msg", 0)
	require.NoError(t, child.Handle(context.Background(), rec))
	assert.Contains(t, buf.String(), "component=pipeline")
}

func TestManager_UpgradeWritesJSONFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "app.log")

	m := NewManager()
	logger := m.Logger()

	require.NoError(t, m.Upgrade(path, slog.LevelDebug))
	defer m.Close()

	logger.Debug("upgraded", "key", "value")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "upgraded", entry["msg"])
	assert.Equal(t, "value", entry["key"])
}

func TestManager_SetLevelFiltersRecords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	m := NewManager()
	require.NoError(t, m.Upgrade(path, slog.LevelInfo))
	defer m.Close()

	m.Logger().Debug("filtered out")
	m.SetLevel(slog.LevelDebug)
	m.Logger().Debug("now visible")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "filtered out")
	assert.Contains(t, string(data), "now visible")
}
