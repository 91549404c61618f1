package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/focus/internal/output"
	"github.com/joescharf/focus/internal/sessions"
	"github.com/joescharf/focus/internal/tui"
)

var (
	runTask     string
	runTaskID   string
	runContext  string
	runScreens  []string
	runInterval int
	runReminder int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Monitor a focus session in the terminal",
	Long: `Start a focus session and watch its activity log live.

Screens are captured every --interval seconds and judged against the task.
Press f to flag the last distraction as a false positive, q to end the session.`,
	Example: `  focus run --task "write quarterly report"
  focus run --task-id 01J9Z... --screen eDP-1 --interval 60`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRun(cmd.Context())
	},
}

func init() {
	runCmd.Flags().StringVarP(&runTask, "task", "t", "", "What you are working on")
	runCmd.Flags().StringVar(&runTaskID, "task-id", "", "Todo list task to focus on")
	runCmd.Flags().StringVar(&runContext, "context", "", "Personal context for the analysis (default: profile.background)")
	runCmd.Flags().StringSliceVarP(&runScreens, "screen", "s", nil, "Screen id to capture (repeatable, default: all)")
	runCmd.Flags().IntVarP(&runInterval, "interval", "i", 0, "Seconds between captures (default: profile.capture_interval_sec)")
	runCmd.Flags().IntVarP(&runReminder, "reminder", "r", 0, "Minutes between reminders (default: profile.reminder_minutes)")
	rootCmd.AddCommand(runCmd)
}

func runLogPath() string {
	return filepath.Join(viper.GetString("state_dir"), "focus-run.log")
}

func runRun(ctx context.Context) error {
	if runTask == "" && runTaskID == "" {
		return fmt.Errorf("--task or --task-id is required")
	}
	if dryRun {
		ui.DryRunMsg("Would start monitoring %q every %ds", runTask, runInterval)
		return nil
	}

	// The TUI owns the terminal, so engine logs go to a file.
	logPath := runLogPath()
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = logFile.Close() }()

	a, err := newApp(logFile)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = a.Close(shutdownCtx)
	}()

	if !a.analyzing {
		ui.Warning("No API key configured: every check will be neutral (run 'focus config init')")
	}

	// Open the window before starting so the "started" entry is not dropped.
	win := a.hub.Open(64)
	defer a.hub.Close(win)

	id, err := a.sessions.Start(ctx, sessions.StartRequest{
		Task:             runTask,
		TaskID:           runTaskID,
		Context:          runContext,
		Screens:          runScreens,
		CaptureInterval:  time.Duration(runInterval) * time.Second,
		ReminderInterval: time.Duration(runReminder) * time.Minute,
	})
	if err != nil {
		return err
	}
	task := runTask
	if st, ok := a.sessions.Stats(id); ok {
		task = st.Task
	}

	model := tui.New(id, task, a.sessions, win.Events())
	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		a.sessions.Stop(context.Background(), id)
		return fmt.Errorf("run window: %w", err)
	}

	final, _ := a.sessions.Stats(id)
	a.sessions.Stop(context.Background(), id)
	if final != nil {
		ui.Success("Session ended after %s: %d checks, %d distractions, %s focused",
			final.Duration.Truncate(time.Second), final.TickCount, final.DistractionCount,
			output.FocusScoreColor(final.FocusScore))
	}
	return nil
}
