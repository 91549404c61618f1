//go:build !windows

package daemon

import (
	"syscall"
)

// IsRunning checks if the PID file exists and the process is alive.
// Returns the PID and whether the process is running.
func (p *PIDFile) IsRunning() (int, bool) {
	pid, err := p.Read()
	if err != nil {
		return 0, false
	}
	// Signal 0 tests if the process exists without sending a signal.
	return pid, syscall.Kill(pid, 0) == nil
}

func (p *PIDFile) terminate() error {
	pid, err := p.Read()
	if err != nil {
		return err
	}
	return syscall.Kill(pid, syscall.SIGTERM)
}
