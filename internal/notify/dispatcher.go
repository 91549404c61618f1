package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/joescharf/focus/internal/metrics"
	"github.com/joescharf/focus/internal/models"
)

const (
	TagDistraction = "focus-distraction"
	TagReminder    = "focus-reminder"
)

// Options configures a Dispatcher. Windows and OS may be nil.
type Options struct {
	Windows Broadcaster
	Focuser WindowController
	OS      OSNotifier
	Picker  Picker
	Logger  zerolog.Logger
}

// Dispatcher routes engine events to windows and the OS, and routes
// notification clicks back to the UI.
type Dispatcher struct {
	windows Broadcaster
	focuser WindowController
	os      OSNotifier
	picker  Picker
	logger  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. Close releases pending notification watchers.
func NewDispatcher(opts Options) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		windows: opts.Windows,
		focuser: opts.Focuser,
		os:      opts.OS,
		picker:  opts.Picker,
		logger:  opts.Logger.With().Str("component", "notify").Logger(),
		ctx:     ctx,
		cancel:  cancel,
	}
	if d.focuser == nil {
		if wc, ok := opts.Windows.(WindowController); ok {
			d.focuser = wc
		}
	}
	return d
}

// Activity broadcasts an activity log entry.
func (d *Dispatcher) Activity(e models.ActivityEntry) {
	d.broadcast(EventActivityUpdate, e)
}

// Distraction broadcasts the alert and shows a persistent OS notification. The
// body is the AI message, else the alert's message, else a fresh remark.
func (d *Dispatcher) Distraction(a Alert) {
	d.broadcast(EventDistractionAlert, a)

	var body string
	switch {
	case a.AIMessage != nil && *a.AIMessage != "":
		body = *a.AIMessage
	case a.Message != "":
		body = a.Message
	case d.picker != nil:
		body = SarcasticRemark(d.picker)
	}
	d.show("distraction", Notification{
		Title:      "Distraction detected: " + a.Reason,
		Body:       body,
		Tag:        TagDistraction,
		Persistent: true,
	})
}

// FocusConfirmation broadcasts a positive confirmation.
func (d *Dispatcher) FocusConfirmation(a Alert) {
	d.broadcast(EventFocusConfirmation, a)
}

// Reminder broadcasts the reminder and shows an auto-dismissing OS notification.
func (d *Dispatcher) Reminder(a Alert) {
	d.broadcast(EventReminder, a)
	d.show("reminder", Notification{
		Title: "Focus reminder",
		Body:  fmt.Sprintf("Keep going on: %s", a.Task),
		Tag:   TagReminder,
	})
}

// Close stops watching shown notifications and waits for the watchers.
func (d *Dispatcher) Close() {
	d.cancel()
	d.wg.Wait()
}

func (d *Dispatcher) broadcast(event string, payload any) {
	if d.windows == nil {
		return
	}
	d.windows.Broadcast(event, payload)
}

func (d *Dispatcher) show(kind string, n Notification) {
	if d.os == nil {
		return
	}
	h, err := d.os.Show(d.ctx, n)
	if err != nil {
		result := "error"
		if errors.Is(err, ErrUnsupported) {
			result = "unsupported"
		}
		metrics.NotificationsTotal.WithLabelValues(kind, result).Inc()
		d.logger.Warn().Err(err).Str("kind", kind).Msg("os notification failed")
		return
	}
	metrics.NotificationsTotal.WithLabelValues(kind, "shown").Inc()

	d.wg.Add(1)
	go d.watch(h)
}

func (d *Dispatcher) watch(h Handle) {
	defer d.wg.Done()
	select {
	case <-h.Activated():
		d.activate()
	case <-h.Done():
		// Activated may close just before Done.
		select {
		case <-h.Activated():
			d.activate()
		default:
		}
	case <-d.ctx.Done():
	}
}

func (d *Dispatcher) activate() {
	if d.focuser != nil {
		d.focuser.ShowAndFocus()
	}
	d.broadcast(EventNavigate, Navigate{View: ViewFocusSession})
}
