package container

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRuntime_String(t *testing.T) {
	tests := []struct {
		runtime Runtime
		want    string
	}{
		{RuntimeDocker, "docker"},
		{RuntimePodman, "podman"},
		{RuntimeNone, ""},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.runtime.String(); got != tt.want {
				t.Errorf("Runtime.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRuntime_DisplayName(t *testing.T) {
	tests := []struct {
		runtime Runtime
		want    string
	}{
		{RuntimeDocker, "Docker"},
		{RuntimePodman, "Podman"},
		{RuntimeNone, "None"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.runtime.DisplayName(); got != tt.want {
				t.Errorf("Runtime.DisplayName() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetectRuntime(t *testing.T) {
	// Actual availability depends on the environment; just verify the
	// result is one of the valid values.
	runtime := DetectRuntime()

	if runtime != RuntimeDocker && runtime != RuntimePodman && runtime != RuntimeNone {
		t.Errorf("DetectRuntime() returned invalid runtime: %v", runtime)
	}
}

func TestBuildRunArgs(t *testing.T) {
	opts := StartOptions{
		BoltPort: 7687,
		HTTPPort: 7474,
		Password: "s3cret",
		DataDir:  "/var/lib/codegraph/neo4j",
		Detach:   true,
	}

	args := strings.Join(buildRunArgs(opts), " ")

	expected := []string{
		"--name " + ContainerName,
		"-d",
		"-p 7687:7687",
		"-p 7474:7474",
		"NEO4J_AUTH=neo4j/s3cret",
		"-v /var/lib/codegraph/neo4j:/data",
		Neo4jImage,
	}
	for _, want := range expected {
		if !strings.Contains(args, want) {
			t.Errorf("buildRunArgs() missing %q in %q", want, args)
		}
	}
}

func TestBuildRunArgs_NoPasswordDisablesAuth(t *testing.T) {
	args := strings.Join(buildRunArgs(StartOptions{BoltPort: 7687, HTTPPort: 7474}), " ")

	if !strings.Contains(args, "NEO4J_AUTH=none") {
		t.Errorf("buildRunArgs() without password should disable auth, got %q", args)
	}
}

func TestEnsureDataDir_DefaultsToConfigDir(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("USERPROFILE", tempHome)

	opts, err := ensureDataDir(StartOptions{})
	if err != nil {
		t.Fatalf("ensureDataDir() error = %v", err)
	}

	expected := filepath.Join(tempHome, ".config", "codegraph", "neo4j")
	if opts.DataDir != expected {
		t.Errorf("ensureDataDir() DataDir = %q, want %q", opts.DataDir, expected)
	}

	info, err := os.Stat(expected)
	if err != nil {
		t.Fatalf("expected data dir to exist; %v", err)
	}
	if !info.IsDir() {
		t.Fatalf("expected data dir to be a directory")
	}
}

func TestEnsureDataDir_UsesProvidedDir(t *testing.T) {
	tempDir := t.TempDir()
	custom := filepath.Join(tempDir, "custom-data")

	opts, err := ensureDataDir(StartOptions{DataDir: custom})
	if err != nil {
		t.Fatalf("ensureDataDir() error = %v", err)
	}

	if opts.DataDir != custom {
		t.Errorf("ensureDataDir() DataDir = %q, want %q", opts.DataDir, custom)
	}

	if _, err := os.Stat(custom); err != nil {
		t.Fatalf("expected custom data dir to exist; %v", err)
	}
}
