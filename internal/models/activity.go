package models

import "time"

// SystemSessionID tags activity entries that are not tied to one session.
const SystemSessionID = "system"

// Severity classifies an activity entry for display.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeveritySuccess Severity = "success"
)

// ActivityEntry is a UI-facing record of one engine event.
type ActivityEntry struct {
	ID        string          `json:"id"`
	SessionID string          `json:"sessionId"`
	Message   string          `json:"message"`
	Severity  Severity        `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Analysis  *AnalysisResult `json:"analysis,omitempty"`
}
