//go:build windows

package daemon

import (
	"os"
	"syscall"
)

// IsRunning checks if the PID file exists and the process is alive.
func (p *PIDFile) IsRunning() (int, bool) {
	pid, err := p.Read()
	if err != nil {
		return 0, false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return pid, false
	}
	// FindProcess always succeeds on Windows; probe with a zero signal.
	return pid, proc.Signal(syscall.Signal(0)) == nil
}

// terminate kills the process; Windows has no SIGTERM delivery.
func (p *PIDFile) terminate() error {
	pid, err := p.Read()
	if err != nil {
		return err
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Kill()
}
