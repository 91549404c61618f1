package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/focus/internal/models"
)

// --- Test fakes ---

type fakeOS struct {
	mu      sync.Mutex
	shown   []Notification
	handles []*handle
	err     error
}

func (f *fakeOS) Show(_ context.Context, n Notification) (Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.shown = append(f.shown, n)
	h := newHandle()
	f.handles = append(f.handles, h)
	return h, nil
}

type firstPicker struct{}

func (firstPicker) IntN(int) int { return 0 }

func strPtr(s string) *string { return &s }

func recv(t *testing.T, w *Window) Event {
	t.Helper()
	select {
	case ev := <-w.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

// --- WindowHub ---

func TestWindowHub_Broadcast(t *testing.T) {
	hub := NewWindowHub()
	hub.Broadcast(EventActivityUpdate, "dropped with no windows")

	w1 := hub.Open(4)
	w2 := hub.Open(4)
	assert.Equal(t, 2, hub.Count())

	hub.Broadcast(EventReminder, Alert{SessionID: "s1"})
	assert.Equal(t, EventReminder, recv(t, w1).Name)
	assert.Equal(t, EventReminder, recv(t, w2).Name)

	hub.Close(w1)
	hub.Close(w1)
	assert.Equal(t, 1, hub.Count())
	_, open := <-w1.Events()
	assert.False(t, open)
}

func TestWindowHub_FullBufferDrops(t *testing.T) {
	hub := NewWindowHub()
	w := hub.Open(1)
	hub.Broadcast("a", nil)
	hub.Broadcast("b", nil)

	assert.Equal(t, "a", recv(t, w).Name)
	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event %q", ev.Name)
	default:
	}
}

// --- Dispatcher ---

func TestDispatcher_Distraction(t *testing.T) {
	hub := NewWindowHub()
	w := hub.Open(8)
	osn := &fakeOS{}
	d := NewDispatcher(Options{Windows: hub, OS: osn, Picker: firstPicker{}, Logger: zerolog.Nop()})
	defer d.Close()

	d.Distraction(Alert{SessionID: "s1", Reason: "social media", AIMessage: strPtr("focus up")})

	ev := recv(t, w)
	assert.Equal(t, EventDistractionAlert, ev.Name)
	alert := ev.Payload.(Alert)
	assert.Equal(t, "social media", alert.Reason)

	require.Len(t, osn.shown, 1)
	n := osn.shown[0]
	assert.True(t, n.Persistent)
	assert.Equal(t, TagDistraction, n.Tag)
	assert.Equal(t, "focus up", n.Body)
	assert.Contains(t, n.Title, "social media")
}

func TestDispatcher_DistractionFallsBackToRemark(t *testing.T) {
	osn := &fakeOS{}
	d := NewDispatcher(Options{OS: osn, Picker: firstPicker{}, Logger: zerolog.Nop()})
	defer d.Close()

	d.Distraction(Alert{SessionID: "s1", Reason: "gaming"})
	require.Len(t, osn.shown, 1)
	assert.Equal(t, sarcasticRemarks[0], osn.shown[0].Body)
}

func TestDispatcher_DistractionUsesAlertMessage(t *testing.T) {
	osn := &fakeOS{}
	d := NewDispatcher(Options{OS: osn, Picker: firstPicker{}, Logger: zerolog.Nop()})
	defer d.Close()

	d.Distraction(Alert{SessionID: "s1", Reason: "gaming", Message: sarcasticRemarks[3]})
	require.Len(t, osn.shown, 1)
	assert.Equal(t, sarcasticRemarks[3], osn.shown[0].Body)
}

func TestDispatcher_Reminder(t *testing.T) {
	hub := NewWindowHub()
	w := hub.Open(8)
	osn := &fakeOS{}
	d := NewDispatcher(Options{Windows: hub, OS: osn, Logger: zerolog.Nop()})
	defer d.Close()

	d.Reminder(Alert{SessionID: "s1", Task: "write report"})

	assert.Equal(t, EventReminder, recv(t, w).Name)
	require.Len(t, osn.shown, 1)
	n := osn.shown[0]
	assert.False(t, n.Persistent)
	assert.Equal(t, TagReminder, n.Tag)
	assert.Contains(t, n.Body, "write report")
}

func TestDispatcher_ClickThrough(t *testing.T) {
	hub := NewWindowHub()
	w := hub.Open(8)
	osn := &fakeOS{}
	d := NewDispatcher(Options{Windows: hub, OS: osn, Logger: zerolog.Nop()})
	defer d.Close()

	d.Reminder(Alert{SessionID: "s1", Task: "t"})
	assert.Equal(t, EventReminder, recv(t, w).Name)

	close(osn.handles[0].activated)

	assert.Equal(t, EventWindowFocus, recv(t, w).Name)
	ev := recv(t, w)
	assert.Equal(t, EventNavigate, ev.Name)
	assert.Equal(t, Navigate{View: ViewFocusSession}, ev.Payload)
}

func TestDispatcher_OSFailureIsBestEffort(t *testing.T) {
	hub := NewWindowHub()
	w := hub.Open(8)
	d := NewDispatcher(Options{Windows: hub, OS: &fakeOS{err: errors.New("dbus down")}, Logger: zerolog.Nop()})
	defer d.Close()

	d.Distraction(Alert{SessionID: "s1", Reason: "r"})
	assert.Equal(t, EventDistractionAlert, recv(t, w).Name)

	d2 := NewDispatcher(Options{OS: NopNotifier{}, Logger: zerolog.Nop()})
	d2.Reminder(Alert{SessionID: "s1"})
	d2.Close()
}

func TestDispatcher_ActivityAndConfirmation(t *testing.T) {
	hub := NewWindowHub()
	w := hub.Open(8)
	d := NewDispatcher(Options{Windows: hub, Logger: zerolog.Nop()})
	defer d.Close()

	d.Activity(models.ActivityEntry{SessionID: "s1", Message: "hello", Severity: models.SeverityInfo})
	d.FocusConfirmation(Alert{SessionID: "s1", Message: "nice"})

	ev := recv(t, w)
	assert.Equal(t, EventActivityUpdate, ev.Name)
	assert.Equal(t, "hello", ev.Payload.(models.ActivityEntry).Message)
	assert.Equal(t, EventFocusConfirmation, recv(t, w).Name)
}

// --- CommandNotifier ---

type recordedRun struct {
	name string
	args []string
}

func TestCommandNotifier_NotifySend(t *testing.T) {
	runs := make(chan recordedRun, 1)
	c := &CommandNotifier{
		AppName:  "focus",
		GOOS:     "linux",
		LookPath: func(string) (string, error) { return "/usr/bin/notify-send", nil },
		Run: func(_ context.Context, name string, args ...string) ([]byte, error) {
			runs <- recordedRun{name: name, args: args}
			return []byte("default\n"), nil
		},
	}

	h, err := c.Show(context.Background(), Notification{Title: "T", Body: "B", Tag: TagDistraction, Persistent: true})
	require.NoError(t, err)

	run := <-runs
	assert.Equal(t, "notify-send", run.name)
	assert.Contains(t, run.args, "--wait")
	assert.Contains(t, run.args, "--action=default=Open")
	assert.Contains(t, run.args, "--urgency=critical")
	assert.Contains(t, run.args, "--expire-time=0")
	assert.Contains(t, run.args, "--hint=string:x-dunst-stack-tag:"+TagDistraction)
	assert.Equal(t, []string{"T", "B"}, run.args[len(run.args)-2:])

	select {
	case <-h.Activated():
	case <-time.After(2 * time.Second):
		t.Fatal("notification not activated")
	}
	<-h.Done()
}

func TestCommandNotifier_DismissedIsNotActivated(t *testing.T) {
	c := &CommandNotifier{
		GOOS:     "linux",
		LookPath: func(string) (string, error) { return "/usr/bin/notify-send", nil },
		Run: func(context.Context, string, ...string) ([]byte, error) {
			return nil, nil
		},
	}
	h, err := c.Show(context.Background(), Notification{Title: "T", Body: "B"})
	require.NoError(t, err)
	<-h.Done()

	select {
	case <-h.Activated():
		t.Fatal("dismissed notification reported activation")
	default:
	}
}

func TestCommandNotifier_Osascript(t *testing.T) {
	runs := make(chan recordedRun, 1)
	c := &CommandNotifier{
		GOOS:     "darwin",
		LookPath: func(string) (string, error) { return "/usr/bin/osascript", nil },
		Run: func(_ context.Context, name string, args ...string) ([]byte, error) {
			runs <- recordedRun{name: name, args: args}
			return nil, nil
		},
	}
	_, err := c.Show(context.Background(), Notification{Title: "Focus", Body: `say "hi"`})
	require.NoError(t, err)

	run := <-runs
	assert.Equal(t, "osascript", run.name)
	assert.Equal(t, `display notification "say \"hi\"" with title "Focus"`, run.args[1])
}

func TestCommandNotifier_Unsupported(t *testing.T) {
	missing := func(string) (string, error) { return "", errors.New("not found") }

	_, err := (&CommandNotifier{GOOS: "linux", LookPath: missing}).Show(context.Background(), Notification{})
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = (&CommandNotifier{GOOS: "plan9", LookPath: missing}).Show(context.Background(), Notification{})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestRemarks(t *testing.T) {
	assert.Equal(t, sarcasticRemarks[0], SarcasticRemark(firstPicker{}))
	assert.Equal(t, focusedRemarks[0], FocusedRemark(firstPicker{}))
}
