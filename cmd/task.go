package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/focus/internal/models"
	"github.com/joescharf/focus/internal/output"
	"github.com/joescharf/focus/internal/store"
)

var (
	taskDesc   string
	taskStatus string
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage the todo list",
	Long:  "Track the tasks you start focus sessions on.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return taskListRun()
	},
}

var taskAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a task",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return taskAddRun(strings.Join(args, " "))
	},
}

var taskListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		return taskListRun()
	},
}

var taskStartCmd = &cobra.Command{
	Use:   "start <task-id>",
	Short: "Mark a task in progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return taskSetStatusRun(args[0], models.TaskStatusInProgress)
	},
}

var taskDoneCmd = &cobra.Command{
	Use:   "done <task-id>",
	Short: "Mark a task done",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return taskSetStatusRun(args[0], models.TaskStatusDone)
	},
}

var taskRmCmd = &cobra.Command{
	Use:     "rm <task-id>",
	Aliases: []string{"delete"},
	Short:   "Delete a task",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return taskRmRun(args[0])
	},
}

func init() {
	taskAddCmd.Flags().StringVarP(&taskDesc, "description", "d", "", "Task description")
	taskListCmd.Flags().StringVar(&taskStatus, "status", "", "Filter by status (todo, in_progress, done)")

	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskStartCmd)
	taskCmd.AddCommand(taskDoneCmd)
	taskCmd.AddCommand(taskRmCmd)
	rootCmd.AddCommand(taskCmd)
}

func taskAddRun(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("title is required")
	}
	if dryRun {
		ui.DryRunMsg("Would add task: %s", title)
		return nil
	}

	s, err := getStore()
	if err != nil {
		return err
	}
	t := &models.Task{Title: title, Description: taskDesc}
	if err := s.CreateTask(context.Background(), t); err != nil {
		return err
	}
	ui.Success("Added task %s: %s", output.Cyan(shortID(t.ID)), t.Title)
	return nil
}

func taskListRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}

	status := models.TaskStatus(strings.ToUpper(taskStatus))
	if status != "" && !status.Valid() {
		return fmt.Errorf("invalid status: %s", taskStatus)
	}
	tasks, err := s.ListTasks(context.Background(), status)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		ui.Info("No tasks found.")
		return nil
	}

	table := ui.Table([]string{"ID", "Title", "Status", "Created", "Completed"})
	for _, t := range tasks {
		completed := ""
		if t.CompletedAt != nil {
			completed = t.CompletedAt.Local().Format("2006-01-02 15:04")
		}
		_ = table.Append([]string{
			shortID(t.ID),
			t.Title,
			output.StatusColor(string(t.Status)),
			t.CreatedAt.Local().Format("2006-01-02 15:04"),
			completed,
		})
	}
	_ = table.Render()
	return nil
}

func taskSetStatusRun(id string, status models.TaskStatus) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	t, err := findTask(ctx, s, id)
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would mark %s as %s", t.Title, status)
		return nil
	}
	t.Status = status
	if err := s.UpdateTask(ctx, t); err != nil {
		return err
	}
	ui.Success("%s: %s", t.Title, output.StatusColor(string(status)))
	return nil
}

func taskRmRun(id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	t, err := findTask(ctx, s, id)
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would delete task: %s", t.Title)
		return nil
	}
	if err := s.DeleteTask(ctx, t.ID); err != nil {
		return err
	}
	ui.Success("Deleted task: %s", t.Title)
	return nil
}

// findTask resolves a full task id or a unique prefix of one.
func findTask(ctx context.Context, s store.Store, id string) (*models.Task, error) {
	// Try exact match first
	if t, err := s.GetTask(ctx, id); err == nil {
		return t, nil
	}

	// Try prefix match - list all and filter
	upper := strings.ToUpper(id)
	tasks, err := s.ListTasks(ctx, "")
	if err != nil {
		return nil, err
	}

	var matches []*models.Task
	for _, t := range tasks {
		if strings.HasPrefix(t.ID, upper) {
			matches = append(matches, t)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("task not found: %s", id)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous task id %s matches %d tasks", id, len(matches))
	}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
