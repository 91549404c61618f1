// Package feedback keeps per-session user corrections and turns recent false
// positives into prompt context.
package feedback

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/joescharf/focus/internal/models"
)

const (
	// MaxEntries is the per-session log cap. Older entries are evicted first.
	MaxEntries = 20
	// ContextWindow is how many recent entries Context inspects.
	ContextWindow = 5
)

var (
	ErrInvalidKind = errors.New("invalid feedback kind")
	ErrNoSession   = errors.New("feedback requires a session id")
)

// Manager stores bounded feedback logs keyed by session id.
type Manager struct {
	mu   sync.RWMutex
	logs map[string][]models.FeedbackEntry
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{logs: make(map[string][]models.FeedbackEntry)}
}

// Record appends e to its session's log, evicting the oldest entry past MaxEntries.
func (m *Manager) Record(e models.FeedbackEntry) error {
	if e.SessionID == "" {
		return ErrNoSession
	}
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, e.Kind)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	log := append(m.logs[e.SessionID], e)
	if over := len(log) - MaxEntries; over > 0 {
		log = append([]models.FeedbackEntry(nil), log[over:]...)
	}
	m.logs[e.SessionID] = log
	return nil
}

// Entries returns a copy of the session's log, oldest first.
func (m *Manager) Entries(sessionID string) []models.FeedbackEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.FeedbackEntry(nil), m.logs[sessionID]...)
}

// Context builds the advisory sentence for the next prompt from false
// positives among the last ContextWindow entries. It returns "" when there is
// nothing to add.
func (m *Manager) Context(sessionID string) string {
	m.mu.RLock()
	log := m.logs[sessionID]
	recent := log[max(0, len(log)-ContextWindow):]

	var notes []string
	for _, e := range recent {
		if e.Kind != models.FeedbackFalsePositive {
			continue
		}
		if s := strings.TrimSpace(e.Explanation); s != "" {
			notes = append(notes, fmt.Sprintf("%q", s))
		}
	}
	m.mu.RUnlock()

	if len(notes) == 0 {
		return ""
	}
	return "The user recently marked similar judgements as false positives, explaining: " +
		strings.Join(notes, "; ") +
		". Do not flag this kind of activity as a distraction."
}

// Clear drops a session's log.
func (m *Manager) Clear(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.logs, sessionID)
}
