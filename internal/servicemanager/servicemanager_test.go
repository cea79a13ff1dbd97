package servicemanager

import (
	"context"
	"strings"
	"testing"
)

// mockExecutor records commands and returns canned outputs keyed by the
// joined command line.
type mockExecutor struct {
	outputs  map[string]string
	errors   map[string]error
	commands []string
}

func (m *mockExecutor) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	key := name + " " + strings.Join(args, " ")
	m.commands = append(m.commands, key)

	if err, ok := m.errors[key]; ok {
		return nil, err
	}
	return []byte(m.outputs[key]), nil
}

func (m *mockExecutor) ran(prefix string) bool {
	for _, cmd := range m.commands {
		if strings.HasPrefix(cmd, prefix) {
			return true
		}
	}
	return false
}

func newMockExecutor() *mockExecutor {
	return &mockExecutor{
		outputs: make(map[string]string),
		errors:  make(map[string]error),
	}
}

func TestDetectPlatform(t *testing.T) {
	platform := DetectPlatform()

	if platform != PlatformLinux && platform != PlatformMacOS &&
		platform != PlatformWindows && platform != PlatformUnknown {
		t.Errorf("DetectPlatform() returned invalid platform: %v", platform)
	}
}

func TestIsPlatformSupported(t *testing.T) {
	tests := []struct {
		platform Platform
		want     bool
	}{
		{PlatformLinux, true},
		{PlatformMacOS, true},
		{PlatformWindows, false},
		{PlatformUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.platform.String(), func(t *testing.T) {
			if got := IsPlatformSupported(tt.platform); got != tt.want {
				t.Errorf("IsPlatformSupported(%v) = %v, want %v", tt.platform, got, tt.want)
			}
		})
	}
}

func TestGetBinaryPath(t *testing.T) {
	path := GetBinaryPath()
	if path == "" {
		t.Error("GetBinaryPath() returned empty string")
	}
}

func TestGetConfigDir(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	dir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}

	if !strings.HasSuffix(dir, ".config/codegraph") {
		t.Errorf("GetConfigDir() = %v, want suffix .config/codegraph", dir)
	}
}

func TestGetDataDir(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	dir, err := GetDataDir()
	if err != nil {
		t.Fatalf("GetDataDir() error = %v", err)
	}

	if !strings.HasSuffix(dir, ".config/codegraph/neo4j") {
		t.Errorf("GetDataDir() = %v, want suffix .config/codegraph/neo4j", dir)
	}
}
