// Package monitor is the focus monitoring engine. It owns the active session
// table, runs one capture/analyze loop per session and reacts to verdicts.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/joescharf/focus/internal/analysis"
	"github.com/joescharf/focus/internal/feedback"
	"github.com/joescharf/focus/internal/metrics"
	"github.com/joescharf/focus/internal/models"
	"github.com/joescharf/focus/internal/notify"
	"github.com/joescharf/focus/internal/screen"
)

// DefaultConfirmEvery is how many ticks apart focus confirmations are sent.
const DefaultConfirmEvery = 5

const authFailureMessage = "API key validation failed. Please check your API key."

// Analyzer produces a verdict for one tick.
type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) analysis.Outcome
}

// Notifier receives every engine event.
type Notifier interface {
	Activity(e models.ActivityEntry)
	Distraction(a notify.Alert)
	FocusConfirmation(a notify.Alert)
	Reminder(a notify.Alert)
}

// Feedback stores user corrections and renders them as prompt context.
type Feedback interface {
	Record(e models.FeedbackEntry) error
	Context(sessionID string) string
	Clear(sessionID string)
}

// SessionStore persists session history and activity.
type SessionStore interface {
	CreateSessionRecord(ctx context.Context, rec *models.SessionRecord) error
	CloseSessionRecord(ctx context.Context, id string, ticks, distractions int) (bool, error)
	AppendActivity(ctx context.Context, entry *models.ActivityEntry) error
}

// Options configures an Engine. Only Source is required.
type Options struct {
	Source       screen.Source
	Analyzer     Analyzer
	Feedback     Feedback
	Notifier     Notifier
	Store        SessionStore
	Clock        Clock
	Random       analysis.Random
	Logger       zerolog.Logger
	ConfirmEvery int
}

// Engine runs focus monitoring sessions.
type Engine struct {
	registry     *Registry
	source       screen.Source
	analyzer     Analyzer
	feedback     Feedback
	notifier     Notifier
	store        SessionStore
	clock        Clock
	random       analysis.Random
	logger       zerolog.Logger
	confirmEvery int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an Engine. Call Shutdown to stop every session.
func New(opts Options) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		registry:     NewRegistry(),
		source:       opts.Source,
		analyzer:     opts.Analyzer,
		feedback:     opts.Feedback,
		notifier:     opts.Notifier,
		store:        opts.Store,
		clock:        opts.Clock,
		random:       opts.Random,
		logger:       opts.Logger.With().Str("component", "monitor").Logger(),
		confirmEvery: opts.ConfirmEvery,
		ctx:          ctx,
		cancel:       cancel,
	}
	if e.clock == nil {
		e.clock = RealClock{}
	}
	if e.random == nil {
		e.random = analysis.NewRandom(uint64(time.Now().UnixNano()))
	}
	if e.analyzer == nil {
		e.analyzer = analysis.NewPipeline(analysis.Options{Random: e.random, Logger: opts.Logger})
	}
	if e.feedback == nil {
		e.feedback = feedback.NewManager()
	}
	if e.notifier == nil {
		e.notifier = nopNotifier{}
	}
	if e.confirmEvery <= 0 {
		e.confirmEvery = DefaultConfirmEvery
	}
	return e
}

// Start activates a session and arms its tick. An empty id is replaced with a
// generated one, which is returned. Start does not wait for the first tick.
func (e *Engine) Start(ctx context.Context, id string, cfg Config) (string, error) {
	task := strings.TrimSpace(cfg.Task)
	if task == "" {
		return "", fmt.Errorf("%w: task is required", ErrInvalidConfig)
	}
	if id == "" {
		id = ulid.Make().String()
	}
	if cfg.CaptureInterval <= 0 {
		cfg.CaptureInterval = DefaultCaptureInterval
	}
	if cfg.ReminderInterval <= 0 {
		cfg.ReminderInterval = DefaultReminderInterval
	}

	now := e.clock.Now()
	s := Session{
		ID:               id,
		Task:             task,
		TaskID:           cfg.TaskID,
		PersonalContext:  cfg.PersonalContext,
		Screens:          cfg.Screens,
		CaptureInterval:  cfg.CaptureInterval,
		ReminderInterval: cfg.ReminderInterval,
		StartedAt:        now,
		LastActivityAt:   now,
		LastReminderAt:   now,
	}

	if e.ctx.Err() != nil {
		return "", ErrShutdown
	}
	loopCtx, cancel := context.WithCancel(e.ctx)
	if err := e.registry.Insert(s, cancel); err != nil {
		cancel()
		return "", err
	}
	if loopCtx.Err() != nil {
		e.registry.Remove(id)
		cancel()
		return "", ErrShutdown
	}
	metrics.ActiveSessions.Inc()

	if e.store != nil {
		rec := &models.SessionRecord{
			ID:                 id,
			TaskID:             cfg.TaskID,
			TaskTitle:          task,
			Screens:            s.Screens,
			CaptureIntervalSec: int(cfg.CaptureInterval / time.Second),
			ReminderMinutes:    int(cfg.ReminderInterval / time.Minute),
			Status:             models.SessionStatusActive,
			StartedAt:          now,
		}
		if err := e.store.CreateSessionRecord(ctx, rec); err != nil {
			e.logger.Warn().Err(err).Str("session_id", id).Msg("create session record")
		}
	}

	e.emit(ctx, id, models.SeverityInfo, fmt.Sprintf("Focus monitoring started for task: %s", task), nil)
	e.logger.Info().Str("session_id", id).Str("task", task).
		Dur("interval", cfg.CaptureInterval).Strs("screens", s.Screens).Msg("session started")

	e.wg.Add(1)
	go e.loop(loopCtx, id, cfg.CaptureInterval)
	return id, nil
}

// Stop ends an active session. It reports false when there was nothing to stop.
func (e *Engine) Stop(ctx context.Context, id string) bool {
	s, cancel, ok := e.registry.Remove(id)
	if !ok {
		return false
	}
	cancel()
	metrics.ActiveSessions.Dec()

	d := e.clock.Now().Sub(s.StartedAt)
	mins := int(d / time.Minute)
	secs := int((d % time.Minute) / time.Second)
	e.emit(ctx, id, models.SeverityInfo, fmt.Sprintf("Session ended. Duration: %dm %ds", mins, secs), nil)
	e.feedback.Clear(id)

	if e.store != nil {
		if _, err := e.store.CloseSessionRecord(ctx, id, s.TickCount, s.DistractionCount); err != nil {
			e.logger.Warn().Err(err).Str("session_id", id).Msg("close session record")
		}
	}
	e.logger.Info().Str("session_id", id).Dur("duration", d).
		Int("ticks", s.TickCount).Int("distractions", s.DistractionCount).Msg("session stopped")
	return true
}

// Stats returns a summary of an active session.
func (e *Engine) Stats(id string) (*Stats, bool) {
	s, ok := e.registry.Snapshot(id)
	if !ok {
		return nil, false
	}
	d := e.clock.Now().Sub(s.StartedAt)
	return &Stats{
		SessionID:        s.ID,
		Task:             s.Task,
		Duration:         d,
		DurationMs:       d.Milliseconds(),
		TickCount:        s.TickCount,
		DistractionCount: s.DistractionCount,
		FocusScore:       FocusScore(s.TickCount, s.DistractionCount),
	}, true
}

// RecordFeedback stores a correction for an active session.
func (e *Engine) RecordFeedback(fb models.FeedbackEntry) error {
	if !e.registry.Has(fb.SessionID) {
		return fmt.Errorf("record feedback: %w: %s", ErrSessionNotFound, fb.SessionID)
	}
	if fb.Timestamp.IsZero() {
		fb.Timestamp = e.clock.Now()
	}
	if err := e.feedback.Record(fb); err != nil {
		return fmt.Errorf("record feedback: %w", err)
	}
	return nil
}

// Sessions returns snapshots of the active sessions ordered by id.
func (e *Engine) Sessions() []Session {
	ids := e.registry.IDs()
	out := make([]Session, 0, len(ids))
	for _, id := range ids {
		if s, ok := e.registry.Snapshot(id); ok {
			out = append(out, s)
		}
	}
	return out
}

// Shutdown stops every session and waits for their loops to exit.
func (e *Engine) Shutdown(ctx context.Context) error {
	for _, id := range e.registry.IDs() {
		e.Stop(ctx, id)
	}
	e.cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown: %w", ctx.Err())
	}
}

// loop runs ticks with serialized re-arm: the next wait starts after the
// previous tick settles.
func (e *Engine) loop(ctx context.Context, id string, interval time.Duration) {
	defer e.wg.Done()
	t := time.NewTimer(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		e.Tick(ctx, id)
		t.Reset(interval)
	}
}

// Tick runs one capture/analyze/react cycle for the session.
func (e *Engine) Tick(ctx context.Context, id string) {
	s, ok := e.registry.Snapshot(id)
	if !ok {
		return
	}
	began := time.Now()
	log := e.logger.With().Str("session_id", id).Logger()

	out, phase, err := e.observe(ctx, s)
	if err != nil {
		if e.registry.Has(id) {
			log.Error().Err(err).Str("phase", phase).Msg("tick failed")
			e.emit(ctx, id, models.SeverityError, fmt.Sprintf("Monitoring error (%s): %v", phase, err), nil)
		}
		return
	}

	now := e.clock.Now()
	res := out.Result
	var remind bool
	var after Session
	ok = e.registry.Update(id, func(s *Session) {
		s.TickCount++
		if res.IsDistracted {
			s.DistractionCount++
		}
		s.LastActivityAt = now
		if now.Sub(s.LastReminderAt) >= s.ReminderInterval {
			remind = true
			s.LastReminderAt = now
		}
		after = *s
	})
	if !ok {
		log.Debug().Msg("session stopped during tick")
		return
	}

	if out.AuthFailure {
		e.emit(ctx, models.SystemSessionID, models.SeverityError, authFailureMessage, nil)
	}
	if res.Source == models.ResultSourceModel {
		e.emit(ctx, models.SystemSessionID, models.SeverityInfo, "AI Analysis: "+res.Reason, &res)
	}

	alert := notify.Alert{
		SessionID: id,
		Reason:    res.Reason,
		AIMessage: res.AIMessage,
		Task:      after.Task,
		Timestamp: now,
	}
	verdict := "focused"
	if res.IsDistracted {
		verdict = "distracted"
		alert.Message = res.Message()
		if alert.Message == "" {
			alert.Message = notify.SarcasticRemark(e.random)
		}
		e.emit(ctx, id, models.SeverityWarning, fmt.Sprintf("Distraction Alert: %s - %s", res.Reason, alert.Message), &res)
		e.notifier.Distraction(alert)
	} else {
		alert.Message = res.Message()
		if alert.Message == "" {
			alert.Message = notify.FocusedRemark(e.random)
		}
		e.emit(ctx, id, models.SeveritySuccess, fmt.Sprintf("Focused: %s - %s", res.Reason, alert.Message), &res)
		if after.TickCount%e.confirmEvery == 0 {
			e.notifier.FocusConfirmation(alert)
		}
	}

	if remind {
		e.notifier.Reminder(notify.Alert{
			SessionID: id,
			Message:   "Time to check in on: " + after.Task,
			Task:      after.Task,
			Timestamp: now,
		})
	}

	metrics.TicksTotal.WithLabelValues(verdict).Inc()
	metrics.TickDuration.Observe(time.Since(began).Seconds())
	log.Debug().Str("verdict", verdict).Str("source", string(res.Source)).
		Int("attempts", out.Attempts).Int("ticks", after.TickCount).Msg("tick complete")
}

// observe captures the configured screens and analyzes them. A panic in
// either phase is returned as an error naming the phase.
func (e *Engine) observe(ctx context.Context, s Session) (out analysis.Outcome, phase string, err error) {
	phase = "capture"
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	images := e.capture(ctx, s)

	phase = "analysis"
	out = e.analyzer.Analyze(ctx, analysis.Request{
		SessionID:       s.ID,
		Task:            s.Task,
		PersonalContext: s.PersonalContext,
		FeedbackContext: e.feedback.Context(s.ID),
		Images:          images,
	})
	return out, phase, nil
}

// capture skips screens that no longer resolve. Other capture errors are
// logged as error entries and the remaining screens are still captured.
func (e *Engine) capture(ctx context.Context, s Session) []screen.Image {
	if e.source == nil {
		return nil
	}
	images := make([]screen.Image, 0, len(s.Screens))
	for _, sid := range s.Screens {
		img, err := e.source.Capture(ctx, sid)
		switch {
		case errors.Is(err, screen.ErrScreenNotFound):
			e.logger.Debug().Str("session_id", s.ID).Str("screen", sid).Msg("screen not found, skipping")
		case err != nil:
			if e.registry.Has(s.ID) {
				e.emit(ctx, s.ID, models.SeverityError, fmt.Sprintf("Monitoring error (capture): %s: %v", sid, err), nil)
			}
		case img != nil:
			images = append(images, *img)
		}
	}
	return images
}

func (e *Engine) emit(ctx context.Context, sessionID string, sev models.Severity, msg string, res *models.AnalysisResult) {
	entry := models.ActivityEntry{
		ID:        ulid.Make().String(),
		SessionID: sessionID,
		Message:   msg,
		Severity:  sev,
		Timestamp: e.clock.Now(),
		Analysis:  res,
	}
	e.notifier.Activity(entry)
	if e.store != nil {
		if err := e.store.AppendActivity(ctx, &entry); err != nil {
			e.logger.Warn().Err(err).Str("session_id", sessionID).Msg("append activity")
		}
	}
}

type nopNotifier struct{}

func (nopNotifier) Activity(models.ActivityEntry)  {}
func (nopNotifier) Distraction(notify.Alert)       {}
func (nopNotifier) FocusConfirmation(notify.Alert) {}
func (nopNotifier) Reminder(notify.Alert)          {}
