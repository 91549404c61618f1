package store

import (
	"context"
	"errors"

	"github.com/joescharf/focus/internal/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the persistence interface for focus.
type Store interface {
	// Sessions
	CreateSessionRecord(ctx context.Context, rec *models.SessionRecord) error
	GetSessionRecord(ctx context.Context, id string) (*models.SessionRecord, error)
	ListSessionRecords(ctx context.Context, limit int) ([]*models.SessionRecord, error)
	CloseSessionRecord(ctx context.Context, id string, ticks, distractions int) (bool, error)

	// Activity
	AppendActivity(ctx context.Context, entry *models.ActivityEntry) error
	ListActivities(ctx context.Context, sessionID string, limit int) ([]*models.ActivityEntry, error)

	// Tasks
	CreateTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	ListTasks(ctx context.Context, status models.TaskStatus) ([]*models.Task, error)
	UpdateTask(ctx context.Context, task *models.Task) error
	DeleteTask(ctx context.Context, id string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
