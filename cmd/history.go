package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/focus/internal/monitor"
	"github.com/joescharf/focus/internal/output"
)

var (
	historyLimit    int
	historyActivity bool
)

var historyCmd = &cobra.Command{
	Use:   "history [session-id]",
	Short: "Show past focus sessions",
	Long: `Show past and active focus sessions, newest first.

With a session id, show that session's activity log instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			return historyActivityRun(args[0])
		}
		return historyRun()
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "Maximum rows to show")
	rootCmd.AddCommand(historyCmd)
}

func historyRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}

	records, err := s.ListSessionRecords(context.Background(), historyLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		ui.Info("No sessions yet. Start one with 'focus run --task ...'")
		return nil
	}

	table := ui.Table([]string{"ID", "Task", "Status", "Started", "Duration", "Checks", "Distractions", "Focus"})
	for _, r := range records {
		end := time.Now()
		if r.EndedAt != nil {
			end = *r.EndedAt
		}
		_ = table.Append([]string{
			shortID(r.ID),
			r.TaskTitle,
			output.StatusColor(string(r.Status)),
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			end.Sub(r.StartedAt).Truncate(time.Second).String(),
			fmt.Sprintf("%d", r.TickCount),
			fmt.Sprintf("%d", r.DistractionCount),
			output.FocusScoreColor(monitor.FocusScore(r.TickCount, r.DistractionCount)),
		})
	}
	_ = table.Render()
	return nil
}

func historyActivityRun(id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	sessionID := id
	if rec, err := s.GetSessionRecord(ctx, id); err == nil {
		sessionID = rec.ID
	} else if records, err := s.ListSessionRecords(ctx, 0); err == nil {
		// Accept a unique id prefix as shown by the table.
		for _, r := range records {
			if strings.HasPrefix(r.ID, strings.ToUpper(id)) {
				sessionID = r.ID
				break
			}
		}
	}

	entries, err := s.ListActivities(ctx, sessionID, historyLimit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		ui.Info("No activity for session %s", id)
		return nil
	}
	for _, e := range entries {
		ui.Activity(*e)
	}
	return nil
}
