package models

import "time"

// FeedbackKind is the type of correction a user gave on a judgement.
type FeedbackKind string

const (
	FeedbackFalsePositive FeedbackKind = "false_positive"
	FeedbackConfirmation  FeedbackKind = "confirmation"
)

// Valid reports whether k is a known feedback kind.
func (k FeedbackKind) Valid() bool {
	return k == FeedbackFalsePositive || k == FeedbackConfirmation
}

// FeedbackEntry is a user correction tied to a past activity entry.
type FeedbackEntry struct {
	SessionID   string       `json:"sessionId"`
	ActivityID  string       `json:"activityId"`
	Kind        FeedbackKind `json:"kind"`
	Explanation string       `json:"explanation,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}
