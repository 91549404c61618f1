package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/focus/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Limiting to a single connection
	// serializes all DB access through Go's connection pool, preventing
	// "database is locked" errors from concurrent HTTP requests.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// Set busy timeout so concurrent writes wait instead of failing immediately
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	// Create migrations tracking table
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	// Sort by filename
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		// Check if already applied
		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Sessions ---

// CreateSessionRecord inserts rec, replacing any earlier record with the same id.
func (s *SQLiteStore) CreateSessionRecord(ctx context.Context, rec *models.SessionRecord) error {
	if rec.ID == "" {
		rec.ID = newULID()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().UTC()
	}
	if rec.Status == "" {
		rec.Status = models.SessionStatusActive
	}
	screens, err := json.Marshal(rec.Screens)
	if err != nil {
		return fmt.Errorf("marshal screens: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, task_id, task_title, screens, capture_interval_sec, reminder_minutes, status, tick_count, distraction_count, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			task_id = excluded.task_id,
			task_title = excluded.task_title,
			screens = excluded.screens,
			capture_interval_sec = excluded.capture_interval_sec,
			reminder_minutes = excluded.reminder_minutes,
			status = excluded.status,
			tick_count = excluded.tick_count,
			distraction_count = excluded.distraction_count,
			started_at = excluded.started_at,
			ended_at = excluded.ended_at`,
		rec.ID, rec.TaskID, rec.TaskTitle, string(screens), rec.CaptureIntervalSec, rec.ReminderMinutes,
		string(rec.Status), rec.TickCount, rec.DistractionCount, rec.StartedAt.UTC(), rec.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("create session record: %w", err)
	}
	return nil
}

const sessionColumns = `id, task_id, task_title, screens, capture_interval_sec, reminder_minutes, status, tick_count, distraction_count, started_at, ended_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSessionRecord(row rowScanner) (*models.SessionRecord, error) {
	rec := &models.SessionRecord{}
	var status, screens string
	var endedAt sql.NullTime
	err := row.Scan(&rec.ID, &rec.TaskID, &rec.TaskTitle, &screens, &rec.CaptureIntervalSec,
		&rec.ReminderMinutes, &status, &rec.TickCount, &rec.DistractionCount, &rec.StartedAt, &endedAt)
	if err != nil {
		return nil, err
	}
	rec.Status = models.SessionStatus(status)
	_ = json.Unmarshal([]byte(screens), &rec.Screens)
	if endedAt.Valid {
		rec.EndedAt = &endedAt.Time
	}
	return rec, nil
}

func (s *SQLiteStore) GetSessionRecord(ctx context.Context, id string) (*models.SessionRecord, error) {
	rec, err := scanSessionRecord(s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session record: %w", err)
	}
	return rec, nil
}

// ListSessionRecords returns records newest first. A limit of 0 returns all.
func (s *SQLiteStore) ListSessionRecords(ctx context.Context, limit int) ([]*models.SessionRecord, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY started_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list session records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var recs []*models.SessionRecord
	for rows.Next() {
		rec, err := scanSessionRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session record: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// CloseSessionRecord marks an active record completed with its final counters.
// It reports false when no active record has the id.
func (s *SQLiteStore) CloseSessionRecord(ctx context.Context, id string, ticks, distractions int) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, ended_at = ?, tick_count = ?, distraction_count = ?
		WHERE id = ? AND status = ?`,
		string(models.SessionStatusCompleted), time.Now().UTC(), ticks, distractions,
		id, string(models.SessionStatusActive),
	)
	if err != nil {
		return false, fmt.Errorf("close session record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("close session record: %w", err)
	}
	return n > 0, nil
}

// --- Activity ---

func (s *SQLiteStore) AppendActivity(ctx context.Context, entry *models.ActivityEntry) error {
	if entry.ID == "" {
		entry.ID = newULID()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	var analysis sql.NullString
	if entry.Analysis != nil {
		data, err := json.Marshal(entry.Analysis)
		if err != nil {
			return fmt.Errorf("marshal analysis: %w", err)
		}
		analysis = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activities (id, session_id, message, severity, analysis, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.SessionID, entry.Message, string(entry.Severity), analysis, entry.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	return nil
}

// ListActivities returns a session's most recent entries, oldest first.
func (s *SQLiteStore) ListActivities(ctx context.Context, sessionID string, limit int) ([]*models.ActivityEntry, error) {
	query := `SELECT id, session_id, message, severity, analysis, created_at FROM activities
		WHERE session_id = ? ORDER BY created_at DESC, id DESC`
	args := []any{sessionID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*models.ActivityEntry
	for rows.Next() {
		e := &models.ActivityEntry{}
		var severity string
		var analysis sql.NullString
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Message, &severity, &analysis, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		e.Severity = models.Severity(severity)
		if analysis.Valid {
			var res models.AnalysisResult
			if json.Unmarshal([]byte(analysis.String), &res) == nil {
				e.Analysis = &res
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Reverse(entries)
	return entries, nil
}

// --- Tasks ---

func (s *SQLiteStore) CreateTask(ctx context.Context, t *models.Task) error {
	if t.ID == "" {
		t.ID = newULID()
	}
	if t.Status == "" {
		t.Status = models.TaskStatusTodo
	}
	t.CreatedAt = time.Now().UTC()
	if t.Status == models.TaskStatusDone && t.CompletedAt == nil {
		t.CompletedAt = &t.CreatedAt
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, title, description, status, created_at, completed_at) VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Description, string(t.Status), t.CreatedAt, t.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func scanTask(row rowScanner) (*models.Task, error) {
	t := &models.Task{}
	var status string
	var completedAt sql.NullTime
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &status, &t.CreatedAt, &completedAt); err != nil {
		return nil, err
	}
	t.Status = models.TaskStatus(status)
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	return t, nil
}

func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*models.Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx,
		`SELECT id, title, description, status, created_at, completed_at FROM tasks WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// ListTasks returns tasks oldest first, filtered by status when one is given.
func (s *SQLiteStore) ListTasks(ctx context.Context, status models.TaskStatus) ([]*models.Task, error) {
	query := `SELECT id, title, description, status, created_at, completed_at FROM tasks`
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateTask saves title, description and status. Moving to DONE stamps
// CompletedAt; moving away from DONE clears it.
func (s *SQLiteStore) UpdateTask(ctx context.Context, t *models.Task) error {
	switch {
	case t.Status == models.TaskStatusDone && t.CompletedAt == nil:
		now := time.Now().UTC()
		t.CompletedAt = &now
	case t.Status != models.TaskStatusDone:
		t.CompletedAt = nil
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET title = ?, description = ?, status = ?, completed_at = ? WHERE id = ?`,
		t.Title, t.Description, string(t.Status), t.CompletedAt, t.ID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %s: %w", t.ID, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) DeleteTask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return nil
}
