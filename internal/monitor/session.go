package monitor

import (
	"time"
)

const (
	DefaultCaptureInterval  = 30 * time.Second
	DefaultReminderInterval = 30 * time.Minute
)

// Config is what a caller supplies to start a session.
type Config struct {
	Task            string
	TaskID          string
	PersonalContext string
	Screens         []string
	// Zero intervals use DefaultCaptureInterval and DefaultReminderInterval.
	CaptureInterval  time.Duration
	ReminderInterval time.Duration
}

// Session is the runtime state of one active session.
type Session struct {
	ID               string
	Task             string
	TaskID           string
	PersonalContext  string
	Screens          []string
	CaptureInterval  time.Duration
	ReminderInterval time.Duration

	StartedAt        time.Time
	LastActivityAt   time.Time
	LastReminderAt   time.Time
	TickCount        int
	DistractionCount int
}

// Stats summarizes an active session.
type Stats struct {
	SessionID        string        `json:"sessionId"`
	Task             string        `json:"task"`
	Duration         time.Duration `json:"-"`
	DurationMs       int64         `json:"duration"`
	TickCount        int           `json:"activityCount"`
	DistractionCount int           `json:"distractionCount"`
	FocusScore       float64       `json:"focusScore"`
}

// FocusScore is the percentage of ticks judged focused, 100 before any tick.
func FocusScore(ticks, distractions int) float64 {
	if ticks <= 0 {
		return 100
	}
	return float64(ticks-distractions) / float64(ticks) * 100
}
