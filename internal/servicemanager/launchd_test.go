package servicemanager

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGeneratePlist(t *testing.T) {
	plist, err := generatePlist()
	if err != nil {
		t.Fatalf("generatePlist() error = %v", err)
	}

	expected := []string{
		"<key>Label</key>",
		"<string>" + launchdServiceLabel + "</string>",
		"<key>ProgramArguments</key>",
		"<string>watch</string>",
		"<key>RunAtLoad</key>",
		"<key>KeepAlive</key>",
		"<key>ThrottleInterval</key>",
	}

	for _, want := range expected {
		if !strings.Contains(plist, want) {
			t.Errorf("generatePlist() missing: %s", want)
		}
	}
}

func TestGetPlistPath(t *testing.T) {
	path, err := getPlistPath()
	if err != nil {
		t.Fatalf("getPlistPath() error = %v", err)
	}

	if !strings.Contains(path, "Library/LaunchAgents") {
		t.Errorf("getPlistPath() = %v, want path containing Library/LaunchAgents", path)
	}
	if !strings.HasSuffix(path, launchdPlistName) {
		t.Errorf("getPlistPath() = %v, want suffix %s", path, launchdPlistName)
	}
}

func TestLaunchdManager_Install(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	mock := newMockExecutor()
	manager := newLaunchdManager(mock, nil)

	if err := manager.Install(context.Background()); err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	plistPath := filepath.Join(tmpDir, "Library", "LaunchAgents", launchdPlistName)
	if _, err := os.Stat(plistPath); err != nil {
		t.Fatalf("expected plist at %s; %v", plistPath, err)
	}

	if !mock.ran("launchctl load -w " + plistPath) {
		t.Error("Install() did not load the service")
	}
}

func TestLaunchdManager_Uninstall(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	plistPath := filepath.Join(tmpDir, "Library", "LaunchAgents", launchdPlistName)
	if err := os.MkdirAll(filepath.Dir(plistPath), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(plistPath, []byte("<plist/>"), 0644); err != nil {
		t.Fatal(err)
	}

	mock := newMockExecutor()
	manager := newLaunchdManager(mock, nil)

	if err := manager.Uninstall(context.Background()); err != nil {
		t.Fatalf("Uninstall() error = %v", err)
	}

	if _, err := os.Stat(plistPath); !os.IsNotExist(err) {
		t.Error("Uninstall() did not remove the plist")
	}
	if !mock.ran("launchctl unload " + plistPath) {
		t.Error("Uninstall() did not unload the service")
	}
}

func TestParseLaunchctlOutput(t *testing.T) {
	tests := []struct {
		name        string
		output      string
		wantPID     int
		wantRunning bool
	}{
		{
			name:        "dictionary format",
			output:      "{\n\t\"PID\" = 12345;\n\t\"Label\" = \"" + launchdServiceLabel + "\";\n}",
			wantPID:     12345,
			wantRunning: true,
		},
		{
			name:        "tabular format",
			output:      "678\t0\t" + launchdServiceLabel,
			wantPID:     678,
			wantRunning: true,
		},
		{
			name:        "not running",
			output:      "-\t0\t" + launchdServiceLabel,
			wantPID:     0,
			wantRunning: false,
		},
		{
			name:        "empty output",
			output:      "",
			wantPID:     0,
			wantRunning: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pid, running := parseLaunchctlOutput(tt.output)
			if pid != tt.wantPID {
				t.Errorf("pid = %v, want %v", pid, tt.wantPID)
			}
			if running != tt.wantRunning {
				t.Errorf("running = %v, want %v", running, tt.wantRunning)
			}
		})
	}
}
