// Package tui is the terminal window of `focus run`: a live activity log for
// one session that also lets the user flag false positives.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/joescharf/focus/internal/models"
	"github.com/joescharf/focus/internal/monitor"
	"github.com/joescharf/focus/internal/notify"
)

// MaxEntries is how much activity history the window keeps.
const MaxEntries = 200

// sessionPort is what the window needs from the engine.
type sessionPort interface {
	Stats(id string) (*monitor.Stats, bool)
	RecordFeedback(fb models.FeedbackEntry) error
}

// ─── messages ────────────────────────────────────────────────────────────────

type eventMsg notify.Event

type closedMsg struct{}

type refreshMsg time.Time

type feedbackMsg struct {
	activityID string
	err        error
}

// ─── styles ──────────────────────────────────────────────────────────────────

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	statsStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	timeStyle    = lipgloss.NewStyle().Faint(true)
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	alertStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("11")).Padding(0, 1)
	helpStyle    = lipgloss.NewStyle().Faint(true)
)

// ─── model ───────────────────────────────────────────────────────────────────

// Model renders one session's events as they arrive on a hub window.
type Model struct {
	sessionID string
	task      string
	session   sessionPort
	events    <-chan notify.Event

	entries        []models.ActivityEntry
	stats          *monitor.Stats
	alert          string
	status         string
	lastDistracted string
	width          int
	height         int
	quitting       bool
}

// New creates a window for sessionID reading from events.
func New(sessionID, task string, session sessionPort, events <-chan notify.Event) Model {
	return Model{
		sessionID: sessionID,
		task:      task,
		session:   session,
		events:    events,
	}
}

// Init starts listening for events and the stats refresh.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), refresh())
}

func waitForEvent(events <-chan notify.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return closedMsg{}
		}
		return eventMsg(ev)
	}
}

func refresh() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

// Update handles keys, engine events and the refresh tick.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "f":
			return m, m.flagFalsePositive()
		case "c":
			m.alert = ""
			return m, nil
		}
		return m, nil

	case eventMsg:
		m.handleEvent(notify.Event(msg))
		return m, waitForEvent(m.events)

	case closedMsg:
		m.quitting = true
		return m, tea.Quit

	case refreshMsg:
		if st, ok := m.session.Stats(m.sessionID); ok {
			m.stats = st
		}
		return m, refresh()

	case feedbackMsg:
		if msg.err != nil {
			m.status = "Feedback failed: " + msg.err.Error()
		} else {
			m.status = "Marked as false positive. Future checks will take it into account."
			if m.lastDistracted == msg.activityID {
				m.lastDistracted = ""
			}
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) handleEvent(ev notify.Event) {
	switch p := ev.Payload.(type) {
	case models.ActivityEntry:
		if p.SessionID != m.sessionID && p.SessionID != models.SystemSessionID {
			return
		}
		m.entries = append(m.entries, p)
		if len(m.entries) > MaxEntries {
			m.entries = m.entries[len(m.entries)-MaxEntries:]
		}
		if p.SessionID == m.sessionID && p.Severity == models.SeverityWarning {
			m.lastDistracted = p.ID
		}
	case notify.Alert:
		if p.SessionID != m.sessionID {
			return
		}
		switch ev.Name {
		case notify.EventDistractionAlert:
			m.alert = fmt.Sprintf("Distracted: %s - %s", p.Reason, p.Message)
		case notify.EventFocusConfirmation:
			m.alert = ""
			m.status = p.Message
		case notify.EventReminder:
			m.status = p.Message
		}
	case notify.Navigate:
		m.status = "Opened from notification"
	}
}

func (m Model) flagFalsePositive() tea.Cmd {
	if m.lastDistracted == "" {
		return func() tea.Msg {
			return feedbackMsg{err: fmt.Errorf("no distraction to flag")}
		}
	}
	id := m.lastDistracted
	session, sessionID := m.session, m.sessionID
	return func() tea.Msg {
		err := session.RecordFeedback(models.FeedbackEntry{
			SessionID:  sessionID,
			ActivityID: id,
			Kind:       models.FeedbackFalsePositive,
		})
		return feedbackMsg{activityID: id, err: err}
	}
}

// View renders the window.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder

	b.WriteString(titleStyle.Render("focus · " + m.task))
	b.WriteString("\n")
	if m.stats != nil {
		b.WriteString(statsStyle.Render(fmt.Sprintf("%s elapsed · %d checks · %d distractions · %.0f%% focused",
			m.stats.Duration.Truncate(time.Second), m.stats.TickCount, m.stats.DistractionCount, m.stats.FocusScore)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.alert != "" {
		b.WriteString(alertStyle.Render(m.alert))
		b.WriteString("\n\n")
	}

	for _, e := range m.visibleEntries() {
		b.WriteString(timeStyle.Render(e.Timestamp.Format("15:04:05")))
		b.WriteString(" ")
		b.WriteString(severityStyle(e.Severity).Render(e.Message))
		b.WriteString("\n")
	}

	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(m.status)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("f flag last distraction as false positive · c clear alert · q stop"))
	return b.String()
}

// visibleEntries returns the tail of the log that fits the window.
func (m Model) visibleEntries() []models.ActivityEntry {
	n := len(m.entries)
	if m.height > 0 {
		rows := m.height - 8
		if rows < 1 {
			rows = 1
		}
		if n > rows {
			return m.entries[n-rows:]
		}
	}
	return m.entries
}

func severityStyle(s models.Severity) lipgloss.Style {
	switch s {
	case models.SeveritySuccess:
		return successStyle
	case models.SeverityWarning:
		return warningStyle
	case models.SeverityError:
		return errorStyle
	default:
		return infoStyle
	}
}
