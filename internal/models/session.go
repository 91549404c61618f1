package models

import "time"

// SessionStatus represents the persisted state of a focus session.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
)

// SessionRecord is the history record of one monitored focus period.
type SessionRecord struct {
	ID                 string        `json:"id"`
	TaskID             string        `json:"taskId,omitempty"`
	TaskTitle          string        `json:"taskTitle"`
	Screens            []string      `json:"screens"`
	CaptureIntervalSec int           `json:"captureIntervalSec"`
	ReminderMinutes    int           `json:"reminderMinutes"`
	Status             SessionStatus `json:"status"`
	TickCount          int           `json:"tickCount"`
	DistractionCount   int           `json:"distractionCount"`
	StartedAt          time.Time     `json:"startTime"`
	EndedAt            *time.Time    `json:"endTime,omitempty"`
}
