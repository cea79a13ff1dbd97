package servicemanager

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGenerateUnitFile(t *testing.T) {
	unit, err := generateUnitFile()
	if err != nil {
		t.Fatalf("generateUnitFile() error = %v", err)
	}

	expectedSections := []string{
		"[Unit]",
		"[Service]",
		"[Install]",
	}

	for _, section := range expectedSections {
		if !strings.Contains(unit, section) {
			t.Errorf("generateUnitFile() missing section: %s", section)
		}
	}

	expectedDirectives := []string{
		"Description=",
		"After=network.target",
		"Type=notify",
		"ExecStart=",
		"watch",
		"WatchdogSec=90",
		"Restart=on-failure",
		"RestartSec=5",
		"StartLimitBurst=5",
		"StartLimitIntervalSec=60",
		"WantedBy=default.target",
	}

	for _, directive := range expectedDirectives {
		if !strings.Contains(unit, directive) {
			t.Errorf("generateUnitFile() missing directive: %s", directive)
		}
	}
}

func TestGetUnitPath(t *testing.T) {
	path, err := getUnitPath()
	if err != nil {
		t.Fatalf("getUnitPath() error = %v", err)
	}

	if !strings.Contains(path, ".config/systemd/user") {
		t.Errorf("getUnitPath() = %v, want path containing .config/systemd/user", path)
	}

	if !strings.HasSuffix(path, systemdServiceName) {
		t.Errorf("getUnitPath() = %v, want suffix %s", path, systemdServiceName)
	}
}

func TestSystemdManager_Install(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	mock := newMockExecutor()
	manager := newSystemdManager(mock, nil)
	ctx := context.Background()

	if err := manager.Install(ctx); err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	unitPath := filepath.Join(tmpDir, ".config", "systemd", "user", systemdServiceName)
	data, err := os.ReadFile(unitPath)
	if err != nil {
		t.Fatalf("expected unit file at %s; %v", unitPath, err)
	}
	if !strings.Contains(string(data), "ExecStart=") {
		t.Error("unit file missing ExecStart directive")
	}

	if !mock.ran("systemctl --user daemon-reload") {
		t.Error("Install() did not reload the systemd daemon")
	}
	if !mock.ran("systemctl --user enable " + systemdServiceName) {
		t.Error("Install() did not enable the service")
	}
}

func TestSystemdManager_Install_EnableFails(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	mock := newMockExecutor()
	mock.errors["systemctl --user enable "+systemdServiceName] = errors.New("dbus unavailable")

	manager := newSystemdManager(mock, nil)
	if err := manager.Install(context.Background()); err == nil {
		t.Fatal("Install() expected error when enable fails")
	}
}

func TestSystemdManager_Uninstall(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	unitPath := filepath.Join(tmpDir, ".config", "systemd", "user", systemdServiceName)
	if err := os.MkdirAll(filepath.Dir(unitPath), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(unitPath, []byte("[Unit]\n"), 0644); err != nil {
		t.Fatal(err)
	}

	mock := newMockExecutor()
	manager := newSystemdManager(mock, nil)

	if err := manager.Uninstall(context.Background()); err != nil {
		t.Fatalf("Uninstall() error = %v", err)
	}

	if _, err := os.Stat(unitPath); !os.IsNotExist(err) {
		t.Error("Uninstall() did not remove the unit file")
	}
	if !mock.ran("systemctl --user stop " + systemdServiceName) {
		t.Error("Uninstall() did not stop the service")
	}
	if !mock.ran("systemctl --user disable " + systemdServiceName) {
		t.Error("Uninstall() did not disable the service")
	}
}

func TestSystemdManager_Status_NotInstalled(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	manager := newSystemdManager(newMockExecutor(), nil)

	status, err := manager.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.ServiceState != ServiceStateNotInstalled {
		t.Errorf("Status() ServiceState = %v, want %v", status.ServiceState, ServiceStateNotInstalled)
	}
	if status.IsRunning {
		t.Error("Status() IsRunning = true for a missing unit")
	}
}

func TestParseSystemctlOutput(t *testing.T) {
	tests := []struct {
		name        string
		output      string
		wantState   ServiceState
		wantPID     int
		wantRunning bool
	}{
		{
			name:        "active and enabled",
			output:      "ActiveState=active\nMainPID=4321\nUnitFileState=enabled",
			wantState:   ServiceStateEnabled,
			wantPID:     4321,
			wantRunning: true,
		},
		{
			name:        "activating counts as running",
			output:      "ActiveState=activating\nMainPID=77\nUnitFileState=enabled-runtime",
			wantState:   ServiceStateEnabled,
			wantPID:     77,
			wantRunning: true,
		},
		{
			name:        "inactive and disabled",
			output:      "ActiveState=inactive\nMainPID=0\nUnitFileState=disabled",
			wantState:   ServiceStateDisabled,
			wantPID:     0,
			wantRunning: false,
		},
		{
			name:        "garbage lines ignored",
			output:      "not-a-property\nActiveState=active\nMainPID=9",
			wantState:   ServiceStateDisabled,
			wantPID:     9,
			wantRunning: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, pid, running := parseSystemctlOutput(tt.output)
			if state != tt.wantState {
				t.Errorf("state = %v, want %v", state, tt.wantState)
			}
			if pid != tt.wantPID {
				t.Errorf("pid = %v, want %v", pid, tt.wantPID)
			}
			if running != tt.wantRunning {
				t.Errorf("running = %v, want %v", running, tt.wantRunning)
			}
		})
	}
}
