package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/joescharf/focus/internal/feedback"
	"github.com/joescharf/focus/internal/metrics"
	"github.com/joescharf/focus/internal/models"
	"github.com/joescharf/focus/internal/monitor"
	"github.com/joescharf/focus/internal/notify"
	"github.com/joescharf/focus/internal/screen"
	"github.com/joescharf/focus/internal/sessions"
	"github.com/joescharf/focus/internal/store"
)

// eventBuffer is the per-connection event queue of the SSE stream.
const eventBuffer = 64

// Server provides the REST API handlers.
type Server struct {
	sessions *sessions.Manager
	store    store.Store
	hub      *notify.WindowHub
	logger   zerolog.Logger
}

// NewServer creates a new API server. The hub may be nil, in which case the
// event stream is unavailable.
func NewServer(m *sessions.Manager, s store.Store, hub *notify.WindowHub, logger zerolog.Logger) *Server {
	return &Server{
		sessions: m,
		store:    s,
		hub:      hub,
		logger:   logger.With().Str("component", "api").Logger(),
	}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/sessions", s.listSessions)
	mux.HandleFunc("POST /api/v1/sessions", s.startSession)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", s.stopSession)
	mux.HandleFunc("GET /api/v1/sessions/{id}/stats", s.sessionStats)
	mux.HandleFunc("GET /api/v1/sessions/{id}/activity", s.sessionActivity)

	mux.HandleFunc("POST /api/v1/feedback", s.recordFeedback)

	mux.HandleFunc("GET /api/v1/screens", s.listScreens)
	mux.HandleFunc("GET /api/v1/history", s.history)

	mux.HandleFunc("GET /api/v1/tasks", s.listTasks)
	mux.HandleFunc("POST /api/v1/tasks", s.createTask)
	mux.HandleFunc("GET /api/v1/tasks/{id}", s.getTask)
	mux.HandleFunc("PUT /api/v1/tasks/{id}", s.updateTask)
	mux.HandleFunc("DELETE /api/v1/tasks/{id}", s.deleteTask)

	mux.HandleFunc("GET /api/v1/events", s.events)
	mux.Handle("GET /metrics", metrics.Handler())

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// storeError maps store errors to a response.
func storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, sessions.ErrNoStore):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func queryLimit(r *http.Request, def int) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// --- Sessions ---

type startSessionRequest struct {
	SessionID          string   `json:"sessionId"`
	Task               string   `json:"task"`
	TaskID             string   `json:"taskId"`
	Context            string   `json:"context"`
	Screens            []string `json:"screens"`
	CaptureIntervalSec int      `json:"captureIntervalSec"`
	ReminderMinutes    int      `json:"reminderMinutes"`
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	stats := s.sessions.ActiveStats()
	if stats == nil {
		stats = []*monitor.Stats{}
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	id, err := s.sessions.Start(r.Context(), sessions.StartRequest{
		ID:               req.SessionID,
		Task:             req.Task,
		TaskID:           req.TaskID,
		Context:          req.Context,
		Screens:          req.Screens,
		CaptureInterval:  time.Duration(req.CaptureIntervalSec) * time.Second,
		ReminderInterval: time.Duration(req.ReminderMinutes) * time.Minute,
	})
	switch {
	case errors.Is(err, monitor.ErrDuplicateSession):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, monitor.ErrInvalidConfig):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, monitor.ErrShutdown):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		storeError(w, err)
		return
	}

	stats, _ := s.sessions.Stats(id)
	writeJSON(w, http.StatusCreated, stats)
}

func (s *Server) stopSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	stopped := s.sessions.Stop(r.Context(), id)
	resp := map[string]any{"sessionId": id, "stopped": stopped}
	if !stopped {
		resp["message"] = "nothing to stop"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) sessionStats(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	stats, ok := s.sessions.Stats(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("session not active: %s", id))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) sessionActivity(w http.ResponseWriter, r *http.Request) {
	entries, err := s.sessions.Activity(r.Context(), r.PathValue("id"), queryLimit(r, 100))
	if err != nil {
		storeError(w, err)
		return
	}
	if entries == nil {
		entries = []*models.ActivityEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// --- Feedback ---

func (s *Server) recordFeedback(w http.ResponseWriter, r *http.Request) {
	var fb models.FeedbackEntry
	if err := json.NewDecoder(r.Body).Decode(&fb); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if fb.Kind == "" {
		fb.Kind = models.FeedbackFalsePositive
	}

	err := s.sessions.RecordFeedback(fb)
	switch {
	case errors.Is(err, monitor.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, feedback.ErrInvalidKind), errors.Is(err, feedback.ErrNoSession):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]bool{"success": true})
}

// --- Screens & history ---

func (s *Server) listScreens(w http.ResponseWriter, r *http.Request) {
	list, err := s.sessions.ListScreens(r.Context())
	if err != nil {
		if errors.Is(err, screen.ErrUnsupported) {
			writeError(w, http.StatusNotImplemented, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []screen.Screen{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	records, err := s.sessions.History(r.Context(), queryLimit(r, 50))
	if err != nil {
		storeError(w, err)
		return
	}
	if records == nil {
		records = []*models.SessionRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// --- Tasks ---

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	status := models.TaskStatus(strings.ToUpper(r.URL.Query().Get("status")))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid status: %s", status))
		return
	}
	tasks, err := s.store.ListTasks(r.Context(), status)
	if err != nil {
		storeError(w, err)
		return
	}
	if tasks == nil {
		tasks = []*models.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var t models.Task
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if t.Status != "" && !t.Status.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid status: %s", t.Status))
		return
	}
	if err := s.store.CreateTask(r.Context(), &t); err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.store.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	existing, err := s.store.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		storeError(w, err)
		return
	}

	var patch struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Status      *string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	// Empty strings are treated as "not provided" to avoid wiping existing data.
	if patch.Title != nil && *patch.Title != "" {
		existing.Title = *patch.Title
	}
	if patch.Description != nil {
		existing.Description = *patch.Description
	}
	if patch.Status != nil && *patch.Status != "" {
		st := models.TaskStatus(strings.ToUpper(*patch.Status))
		if !st.Valid() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid status: %s", *patch.Status))
			return
		}
		existing.Status = st
	}

	if err := s.store.UpdateTask(r.Context(), existing); err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteTask(r.Context(), r.PathValue("id")); err != nil {
		storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Events ---

// events streams engine events as server-sent events. Each connection is one
// window of the hub for as long as it stays open.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "event stream not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	win := s.hub.Open(eventBuffer)
	defer s.hub.Close(win)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-win.Events():
			if !ok {
				return
			}
			data, err := json.Marshal(ev.Payload)
			if err != nil {
				s.logger.Warn().Err(err).Str("event", ev.Name).Msg("marshal event")
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, data)
			flusher.Flush()
		}
	}
}
