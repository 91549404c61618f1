package cmd

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/focus/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for AI assistant integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

The monitoring engine runs inside the MCP server process, so sessions live as
long as the assistant keeps the server open. Configure with:

  {
    "mcpServers": {
      "focus": { "command": "focus", "args": ["mcp"] }
    }
  }

Available tools: focus_start_session, focus_stop_session, focus_session_stats,
focus_record_feedback, focus_list_screens, focus_list_tasks`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), shutdownSignals()...)
		defer stop()

		// stdout carries the protocol; logs go to stderr.
		a, err := newApp(os.Stderr)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = a.Close(shutdownCtx)
		}()

		return mcp.NewServer(a.sessions, a.store, buildVersion).ServeStdio(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
