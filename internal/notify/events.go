// Package notify fans engine events out to open windows and the OS
// notification center.
package notify

import "time"

// UI event names.
const (
	EventActivityUpdate    = "activity-update"
	EventDistractionAlert  = "distraction-alert"
	EventFocusConfirmation = "focus-confirmation"
	EventReminder          = "reminder"
	EventNavigate          = "navigate"
	EventWindowFocus       = "window-focus"
)

// ViewFocusSession is the view a click-through navigates to.
const ViewFocusSession = "focus-session"

// Alert is the payload of distraction, confirmation and reminder events.
type Alert struct {
	SessionID string    `json:"sessionId"`
	Message   string    `json:"message,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	AIMessage *string   `json:"aiMessage,omitempty"`
	Task      string    `json:"task,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Navigate asks a window to switch view.
type Navigate struct {
	View string `json:"view"`
}

// Event is one named payload delivered to a window.
type Event struct {
	Name    string `json:"event"`
	Payload any    `json:"payload"`
}

// Broadcaster delivers an event to every open window.
type Broadcaster interface {
	Broadcast(event string, payload any)
}

// WindowController raises the application window.
type WindowController interface {
	ShowAndFocus()
}
