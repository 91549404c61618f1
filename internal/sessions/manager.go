// Package sessions is the command layer shared by the CLI, the HTTP API and
// the MCP server. It resolves tasks and profile defaults before handing a
// session to the engine.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joescharf/focus/internal/models"
	"github.com/joescharf/focus/internal/monitor"
	"github.com/joescharf/focus/internal/screen"
	"github.com/joescharf/focus/internal/store"
)

// ErrNoStore is returned by store-backed operations when none is configured.
var ErrNoStore = errors.New("no store configured")

// Engine is the subset of the monitoring engine the manager drives.
type Engine interface {
	Start(ctx context.Context, id string, cfg monitor.Config) (string, error)
	Stop(ctx context.Context, id string) bool
	Stats(id string) (*monitor.Stats, bool)
	RecordFeedback(fb models.FeedbackEntry) error
	Sessions() []monitor.Session
}

// Profile holds user defaults applied when a start request omits them.
type Profile struct {
	Background       string
	CaptureInterval  time.Duration
	ReminderInterval time.Duration
	Screens          []string
}

// StartRequest describes a session to start. Either Task or TaskID is required.
type StartRequest struct {
	ID               string        `json:"sessionId,omitempty"`
	Task             string        `json:"task,omitempty"`
	TaskID           string        `json:"taskId,omitempty"`
	Context          string        `json:"context,omitempty"`
	Screens          []string      `json:"screens,omitempty"`
	CaptureInterval  time.Duration `json:"-"`
	ReminderInterval time.Duration `json:"-"`
}

// Manager coordinates the engine, the store and the screen source.
type Manager struct {
	engine  Engine
	store   store.Store
	source  screen.Source
	profile Profile
}

// NewManager creates a Manager. The store and source may be nil.
func NewManager(engine Engine, s store.Store, source screen.Source, profile Profile) *Manager {
	return &Manager{engine: engine, store: s, source: source, profile: profile}
}

// Start resolves the task and defaults, then starts monitoring. A referenced
// TODO task moves to IN_PROGRESS once the session is running.
func (m *Manager) Start(ctx context.Context, req StartRequest) (string, error) {
	task := strings.TrimSpace(req.Task)
	var ref *models.Task
	if req.TaskID != "" {
		if m.store == nil {
			return "", fmt.Errorf("task %s: %w", req.TaskID, ErrNoStore)
		}
		t, err := m.store.GetTask(ctx, req.TaskID)
		if err != nil {
			return "", fmt.Errorf("get task: %w", err)
		}
		if task == "" {
			task = t.Title
		}
		ref = t
	}

	cfg := monitor.Config{
		Task:             task,
		TaskID:           req.TaskID,
		PersonalContext:  req.Context,
		Screens:          req.Screens,
		CaptureInterval:  req.CaptureInterval,
		ReminderInterval: req.ReminderInterval,
	}
	if cfg.PersonalContext == "" {
		cfg.PersonalContext = m.profile.Background
	}
	if cfg.CaptureInterval <= 0 {
		cfg.CaptureInterval = m.profile.CaptureInterval
	}
	if cfg.ReminderInterval <= 0 {
		cfg.ReminderInterval = m.profile.ReminderInterval
	}
	if len(cfg.Screens) == 0 {
		cfg.Screens = m.defaultScreens(ctx)
	}

	id, err := m.engine.Start(ctx, req.ID, cfg)
	if err != nil {
		return "", err
	}
	if ref != nil && ref.Status == models.TaskStatusTodo {
		ref.Status = models.TaskStatusInProgress
		if err := m.store.UpdateTask(ctx, ref); err != nil {
			m.engine.Stop(ctx, id)
			return "", fmt.Errorf("start task: %w", err)
		}
	}
	return id, nil
}

func (m *Manager) defaultScreens(ctx context.Context) []string {
	if len(m.profile.Screens) > 0 {
		return m.profile.Screens
	}
	if m.source == nil {
		return nil
	}
	list, err := m.source.List(ctx)
	if err != nil {
		return nil
	}
	ids := make([]string, 0, len(list))
	for _, s := range list {
		ids = append(ids, s.ID)
	}
	return ids
}

// Stop ends a session, reporting false when it was not active.
func (m *Manager) Stop(ctx context.Context, id string) bool {
	return m.engine.Stop(ctx, id)
}

// Stats returns an active session's summary.
func (m *Manager) Stats(id string) (*monitor.Stats, bool) {
	return m.engine.Stats(id)
}

// RecordFeedback forwards a correction to the engine.
func (m *Manager) RecordFeedback(fb models.FeedbackEntry) error {
	return m.engine.RecordFeedback(fb)
}

// ActiveStats returns stats for every active session.
func (m *Manager) ActiveStats() []*monitor.Stats {
	var out []*monitor.Stats
	for _, s := range m.engine.Sessions() {
		if st, ok := m.engine.Stats(s.ID); ok {
			out = append(out, st)
		}
	}
	return out
}

// ListScreens enumerates capture targets.
func (m *Manager) ListScreens(ctx context.Context) ([]screen.Screen, error) {
	if m.source == nil {
		return nil, screen.ErrUnsupported
	}
	return m.source.List(ctx)
}

// History returns past and current session records, newest first.
func (m *Manager) History(ctx context.Context, limit int) ([]*models.SessionRecord, error) {
	if m.store == nil {
		return nil, ErrNoStore
	}
	return m.store.ListSessionRecords(ctx, limit)
}

// Activity returns a session's persisted activity log.
func (m *Manager) Activity(ctx context.Context, sessionID string, limit int) ([]*models.ActivityEntry, error) {
	if m.store == nil {
		return nil, ErrNoStore
	}
	return m.store.ListActivities(ctx, sessionID, limit)
}
