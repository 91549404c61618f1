package monitor

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateSession = errors.New("session already active")
	ErrSessionNotFound  = errors.New("session not active")
	ErrInvalidConfig    = errors.New("invalid session config")
	ErrShutdown         = errors.New("engine shut down")
)

// DuplicateSessionError is returned by Start when the id is already active.
type DuplicateSessionError struct {
	ID string
}

func (e *DuplicateSessionError) Error() string {
	return fmt.Sprintf("session %q already active", e.ID)
}

// Is makes errors.Is(err, ErrDuplicateSession) match.
func (e *DuplicateSessionError) Is(target error) bool {
	return target == ErrDuplicateSession
}
