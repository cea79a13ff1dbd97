package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ErrAlreadyRunning indicates another daemon process holds the PID file.
var ErrAlreadyRunning = errors.New("daemon already running")

// PIDFile guards against concurrent daemon instances for one project.
type PIDFile struct {
	path string
}

// NewPIDFile creates a PIDFile at the given path. A leading ~/ expands to
// the user's home directory.
func NewPIDFile(path string) *PIDFile {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return &PIDFile{path: path}
}

// Path returns the resolved PID file path.
func (p *PIDFile) Path() string {
	return p.path
}

// CheckAndClaim writes our PID unless a live process already owns the file.
// A stale file left by a dead process is taken over.
func (p *PIDFile) CheckAndClaim() error {
	pid, err := p.Read()
	if err == nil && pid != os.Getpid() && processAlive(pid) {
		return fmt.Errorf("%w with pid %d", ErrAlreadyRunning, pid)
	}
	return p.write()
}

// Read returns the PID stored in the file.
func (p *PIDFile) Read() (int, error) {
	content, err := os.ReadFile(p.path)
	if err != nil {
		return 0, fmt.Errorf("failed to read PID file; %w", err)
	}

	pidStr := strings.TrimSpace(string(content))
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return 0, fmt.Errorf("invalid PID file content %q; %w", pidStr, err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("invalid PID %d", pid)
	}
	return pid, nil
}

// Remove deletes the PID file. Missing files are not an error.
func (p *PIDFile) Remove() error {
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file; %w", err)
	}
	return nil
}

// write stores the current PID atomically via a temp file and rename.
func (p *PIDFile) write() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("failed to create PID file directory; %w", err)
	}

	tmpPath := p.path + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("failed to write PID file; %w", err)
	}
	if err := os.Rename(tmpPath, p.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename PID file; %w", err)
	}
	return nil
}

// processAlive probes a PID with signal 0.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
