package cmd

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/focus/internal/models"
)

func TestTaskAddRun(t *testing.T) {
	testEnv(t)
	taskDesc = "quarterly numbers"
	t.Cleanup(func() { taskDesc = "" })

	require.NoError(t, taskAddRun("  write report  "))

	s, err := getStore()
	require.NoError(t, err)
	tasks, err := s.ListTasks(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "write report", tasks[0].Title)
	assert.Equal(t, "quarterly numbers", tasks[0].Description)
	assert.Equal(t, models.TaskStatusTodo, tasks[0].Status)
}

func TestTaskAddRun_EmptyTitle(t *testing.T) {
	testEnv(t)
	err := taskAddRun("   ")
	assert.ErrorContains(t, err, "title is required")
}

func TestTaskAddRun_DryRun(t *testing.T) {
	testEnv(t)
	dryRun = true
	defer func() { dryRun = false }()

	require.NoError(t, taskAddRun("write report"))

	s, err := getStore()
	require.NoError(t, err)
	tasks, err := s.ListTasks(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestTaskLifecycle(t *testing.T) {
	testEnv(t)
	ctx := context.Background()
	s, err := getStore()
	require.NoError(t, err)

	task := &models.Task{Title: "review PR"}
	require.NoError(t, s.CreateTask(ctx, task))

	require.NoError(t, taskSetStatusRun(task.ID[:10], models.TaskStatusInProgress))
	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusInProgress, got.Status)
	assert.Nil(t, got.CompletedAt)

	require.NoError(t, taskSetStatusRun(task.ID, models.TaskStatusDone))
	got, err = s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusDone, got.Status)
	assert.NotNil(t, got.CompletedAt)

	require.NoError(t, taskRmRun(task.ID))
	_, err = s.GetTask(ctx, task.ID)
	assert.Error(t, err)
}

func TestTaskListRun(t *testing.T) {
	testEnv(t)
	var buf bytes.Buffer
	ui.Out = &buf

	require.NoError(t, taskListRun())
	assert.Contains(t, buf.String(), "No tasks found")

	require.NoError(t, taskAddRun("write report"))
	buf.Reset()
	require.NoError(t, taskListRun())
	assert.Contains(t, buf.String(), "write report")
}

func TestTaskListRun_InvalidStatus(t *testing.T) {
	testEnv(t)
	taskStatus = "blocked"
	t.Cleanup(func() { taskStatus = "" })

	err := taskListRun()
	assert.ErrorContains(t, err, "invalid status")
}

func TestFindTask(t *testing.T) {
	testEnv(t)
	ctx := context.Background()
	s, err := getStore()
	require.NoError(t, err)

	a := &models.Task{ID: "01AAAA0000000000000000000A", Title: "a"}
	b := &models.Task{ID: "01AAAA0000000000000000000B", Title: "b"}
	c := &models.Task{ID: "01BBBB0000000000000000000C", Title: "c"}
	for _, task := range []*models.Task{a, b, c} {
		require.NoError(t, s.CreateTask(ctx, task))
	}

	got, err := findTask(ctx, s, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "b", got.Title)

	got, err = findTask(ctx, s, "01bbbb")
	require.NoError(t, err)
	assert.Equal(t, "c", got.Title)

	_, err = findTask(ctx, s, "01AAAA")
	assert.ErrorContains(t, err, "ambiguous")

	_, err = findTask(ctx, s, "01ZZZZ")
	assert.ErrorContains(t, err, "not found")
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "abc", shortID("abc"))
	assert.Equal(t, "01J9Z0000000", shortID("01J9Z00000000000000000000A"))
}

func TestHistoryRun(t *testing.T) {
	testEnv(t)
	ctx := context.Background()
	var buf bytes.Buffer
	ui.Out = &buf

	require.NoError(t, historyRun())
	assert.Contains(t, buf.String(), "No sessions yet")

	s, err := getStore()
	require.NoError(t, err)
	started := time.Now().Add(-10 * time.Minute).UTC()
	rec := &models.SessionRecord{
		ID:        "01HISTORY00000000000000000",
		TaskTitle: "write report",
		Status:    models.SessionStatusActive,
		StartedAt: started,
	}
	require.NoError(t, s.CreateSessionRecord(ctx, rec))
	_, err = s.CloseSessionRecord(ctx, rec.ID, 10, 2)
	require.NoError(t, err)
	require.NoError(t, s.AppendActivity(ctx, &models.ActivityEntry{
		SessionID: rec.ID, Message: "Focus session started", Severity: models.SeverityInfo, Timestamp: started,
	}))
	require.NoError(t, s.AppendActivity(ctx, &models.ActivityEntry{
		SessionID: rec.ID, Message: "Distraction detected", Severity: models.SeverityWarning,
		Timestamp: started.Add(time.Minute),
	}))

	buf.Reset()
	require.NoError(t, historyRun())
	assert.Contains(t, buf.String(), "write report")
	assert.Contains(t, buf.String(), "80%")

	buf.Reset()
	require.NoError(t, historyActivityRun("01history"))
	out := buf.String()
	assert.Contains(t, out, "Focus session started")
	assert.Contains(t, out, "Distraction detected")
	assert.Less(t, bytes.Index([]byte(out), []byte("started")), bytes.Index([]byte(out), []byte("Distraction")))
}
