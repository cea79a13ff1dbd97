package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraphhq/codegraph/internal/pipeline"
)

type stubRunner struct {
	recoverResult pipeline.RecoverResult
	stats         pipeline.Stats
	processErr    error
	processCalls  int
}

func (s *stubRunner) Recover(ctx context.Context, projectID string) (pipeline.RecoverResult, error) {
	return s.recoverResult, nil
}

func (s *stubRunner) Process(ctx context.Context, projectID string) (pipeline.Stats, error) {
	s.processCalls++
	return s.stats, s.processErr
}

func newTestDaemon(t *testing.T, runner Runner) *Daemon {
	t.Helper()
	cfg := DefaultConfig()
	cfg.ProjectID = "proj"
	cfg.PIDFile = filepath.Join(t.TempDir(), "daemon.pid")
	return New(cfg, runner)
}

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateStarting, StateRunning, true},
		{StateStarting, StateDegraded, false},
		{StateRunning, StateDegraded, true},
		{StateRunning, StateStopping, true},
		{StateDegraded, StateRunning, true},
		{StateStopping, StateStopped, true},
		{StateStopped, StateRunning, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestRunOnce_FailureDegradesAndRecoveryRestores(t *testing.T) {
	runner := &stubRunner{processErr: errors.New("graph unreachable")}
	d := newTestDaemon(t, runner)
	d.setState(StateRunning)

	d.runOnce(context.Background())
	assert.Equal(t, StateDegraded, d.State())
	assert.Equal(t, "unhealthy", d.Health().Status, "pipeline is a critical component")
	assert.False(t, d.Health().Ready)

	runner.processErr = nil
	runner.stats = pipeline.Stats{FilesProcessed: 3}
	d.runOnce(context.Background())
	assert.Equal(t, StateRunning, d.State())
	assert.Equal(t, "healthy", d.Health().Status)
}

func TestKick_CoalescesPendingTriggers(t *testing.T) {
	d := newTestDaemon(t, &stubRunner{})
	d.Kick()
	d.Kick()
	d.Kick()

	drained := 0
	for {
		select {
		case <-d.trigger:
			drained++
			continue
		default:
		}
		break
	}
	assert.Equal(t, 1, drained)
}

func TestPIDFile_ClaimAndRemove(t *testing.T) {
	p := NewPIDFile(filepath.Join(t.TempDir(), "sub", "daemon.pid"))

	require.NoError(t, p.CheckAndClaim())
	pid, err := p.Read()
	require.NoError(t, err)
	assert.Positive(t, pid)

	// Re-claiming from the same process is fine.
	require.NoError(t, p.CheckAndClaim())

	require.NoError(t, p.Remove())
	_, err = p.Read()
	assert.Error(t, err)

	// Removing a missing file is not an error.
	assert.NoError(t, p.Remove())
}

func TestPIDFile_StaleFileIsTakenOver(t *testing.T) {
	dir := t.TempDir()
	p := NewPIDFile(filepath.Join(dir, "daemon.pid"))

	// PID far beyond pid_max never refers to a live process.
	require.NoError(t, os.WriteFile(p.Path(), []byte("99999999"), 0o644))
	require.NoError(t, p.CheckAndClaim())

	pid, err := p.Read()
	require.NoError(t, err)
	assert.NotEqual(t, 99999999, pid)
}

func TestHealthManager_Aggregation(t *testing.T) {
	h := NewHealthManager()
	assert.Equal(t, "healthy", h.Status().Status)

	h.UpdateComponent("entities", ComponentHealth{Status: ComponentDegraded})
	status := h.Status()
	assert.Equal(t, "degraded", status.Status)
	assert.True(t, status.Ready, "a degraded entity service keeps the daemon ready")

	h.UpdateComponent("graph", ComponentHealth{Status: ComponentFailed, Error: "connection refused"})
	status = h.Status()
	assert.Equal(t, "unhealthy", status.Status)
	assert.False(t, status.Ready)

	h.UpdateComponent("graph", ComponentHealth{Status: ComponentHealthy})
	assert.Equal(t, "degraded", h.Status().Status, "entities is still degraded")
}
