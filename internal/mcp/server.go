package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/focus/internal/models"
	"github.com/joescharf/focus/internal/monitor"
	"github.com/joescharf/focus/internal/sessions"
	"github.com/joescharf/focus/internal/store"
)

// Server exposes focus sessions and tasks as MCP tools.
type Server struct {
	sessions *sessions.Manager
	store    store.Store
	version  string
}

// NewServer creates the MCP server wrapper. The store may be nil, which
// disables the task tools' data.
func NewServer(m *sessions.Manager, s store.Store, version string) *Server {
	return &Server{sessions: m, store: s, version: version}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("focus", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.startSessionTool())
	srv.AddTool(s.stopSessionTool())
	srv.AddTool(s.sessionStatsTool())
	srv.AddTool(s.recordFeedbackTool())
	srv.AddTool(s.listScreensTool())
	srv.AddTool(s.listTasksTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// focus_start_session
func (s *Server) startSessionTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("focus_start_session",
		mcp.WithDescription("Start monitoring a focus session. Screens are captured on an interval and judged against the task."),
		mcp.WithString("task", mcp.Description("What the user is working on. Required unless task_id is given.")),
		mcp.WithString("task_id", mcp.Description("Todo list task to focus on; its title is used as the task")),
		mcp.WithString("session_id", mcp.Description("Session id (generated when omitted)")),
		mcp.WithString("context", mcp.Description("Personal context about the user to include in analysis")),
		mcp.WithString("screens", mcp.Description("Comma-separated screen ids to capture (default: all)")),
		mcp.WithNumber("capture_interval_sec", mcp.Description("Seconds between captures (default: 30)")),
		mcp.WithNumber("reminder_minutes", mcp.Description("Minutes between reminders (default: 30)")),
	)
	return tool, s.handleStartSession
}

func (s *Server) handleStartSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req := sessions.StartRequest{
		ID:               request.GetString("session_id", ""),
		Task:             request.GetString("task", ""),
		TaskID:           request.GetString("task_id", ""),
		Context:          request.GetString("context", ""),
		CaptureInterval:  time.Duration(request.GetInt("capture_interval_sec", 0)) * time.Second,
		ReminderInterval: time.Duration(request.GetInt("reminder_minutes", 0)) * time.Minute,
	}
	if req.Task == "" && req.TaskID == "" {
		return mcp.NewToolResultError("missing required parameter: task or task_id"), nil
	}
	if screens := request.GetString("screens", ""); screens != "" {
		for _, id := range strings.Split(screens, ",") {
			if id = strings.TrimSpace(id); id != "" {
				req.Screens = append(req.Screens, id)
			}
		}
	}

	id, err := s.sessions.Start(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to start session: %v", err)), nil
	}
	stats, _ := s.sessions.Stats(id)
	return jsonResult(stats)
}

// focus_stop_session
func (s *Server) stopSessionTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("focus_stop_session",
		mcp.WithDescription("Stop an active focus session. Reports stopped=false when there was nothing to stop."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
	)
	return tool, s.handleStopSession
}

func (s *Server) handleStopSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: session_id"), nil
	}

	// Capture final stats before the session leaves the active table.
	stats, _ := s.sessions.Stats(id)
	stopped := s.sessions.Stop(ctx, id)
	out := map[string]any{"sessionId": id, "stopped": stopped}
	if stopped && stats != nil {
		out["stats"] = stats
	}
	if !stopped {
		out["message"] = "nothing to stop"
	}
	return jsonResult(out)
}

// focus_session_stats
func (s *Server) sessionStatsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("focus_session_stats",
		mcp.WithDescription("Get duration, tick count, distraction count and focus score of active sessions. Omit session_id to list all."),
		mcp.WithString("session_id", mcp.Description("Session id")),
	)
	return tool, s.handleSessionStats
}

func (s *Server) handleSessionStats(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetString("session_id", "")
	if id == "" {
		all := s.sessions.ActiveStats()
		if all == nil {
			all = []*monitor.Stats{}
		}
		return jsonResult(all)
	}
	stats, ok := s.sessions.Stats(id)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("session not active: %s", id)), nil
	}
	return jsonResult(stats)
}

// focus_record_feedback
func (s *Server) recordFeedbackTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("focus_record_feedback",
		mcp.WithDescription("Mark a past judgement as a false positive (or confirm it). False-positive explanations are fed into later analysis of the session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
		mcp.WithString("activity_id", mcp.Required(), mcp.Description("Activity entry id being corrected")),
		mcp.WithString("kind", mcp.Description("Feedback kind"), mcp.Enum("false_positive", "confirmation")),
		mcp.WithString("explanation", mcp.Description("Why the judgement was wrong")),
	)
	return tool, s.handleRecordFeedback
}

func (s *Server) handleRecordFeedback(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: session_id"), nil
	}
	activityID, err := request.RequireString("activity_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: activity_id"), nil
	}

	fb := models.FeedbackEntry{
		SessionID:   sessionID,
		ActivityID:  activityID,
		Kind:        models.FeedbackKind(request.GetString("kind", string(models.FeedbackFalsePositive))),
		Explanation: request.GetString("explanation", ""),
	}
	if err := s.sessions.RecordFeedback(fb); err != nil {
		if errors.Is(err, monitor.ErrSessionNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("session not active: %s", sessionID)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to record feedback: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Feedback recorded for %s", activityID)), nil
}

// focus_list_screens
func (s *Server) listScreensTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("focus_list_screens",
		mcp.WithDescription("List the screens available for capture. Returns a JSON array of {id, name}."),
	)
	return tool, s.handleListScreens
}

func (s *Server) handleListScreens(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.sessions.ListScreens(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list screens: %v", err)), nil
	}
	return jsonResult(list)
}

// focus_list_tasks
func (s *Server) listTasksTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("focus_list_tasks",
		mcp.WithDescription("List todo list tasks that a focus session can be started on."),
		mcp.WithString("status", mcp.Description("Filter by status"), mcp.Enum("TODO", "IN_PROGRESS", "DONE")),
	)
	return tool, s.handleListTasks
}

func (s *Server) handleListTasks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return mcp.NewToolResultError(sessions.ErrNoStore.Error()), nil
	}
	status := models.TaskStatus(strings.ToUpper(request.GetString("status", "")))
	if status != "" && !status.Valid() {
		return mcp.NewToolResultError(fmt.Sprintf("invalid status: %s", status)), nil
	}
	tasks, err := s.store.ListTasks(ctx, status)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list tasks: %v", err)), nil
	}
	if tasks == nil {
		tasks = []*models.Task{}
	}
	return jsonResult(tasks)
}
