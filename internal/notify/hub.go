package notify

import "sync"

// Window is one open UI surface subscribed to the hub.
type Window struct {
	id int
	c  chan Event
}

// Events returns the window's event stream. It is closed when the window closes.
func (w *Window) Events() <-chan Event { return w.c }

// WindowHub tracks open windows. Broadcasts never block: a window whose
// buffer is full misses the event, and with no windows events are dropped.
type WindowHub struct {
	mu      sync.RWMutex
	nextID  int
	windows map[int]*Window
}

// NewWindowHub creates a hub with no windows.
func NewWindowHub() *WindowHub {
	return &WindowHub{windows: make(map[int]*Window)}
}

// Open registers a window with the given event buffer size.
func (h *WindowHub) Open(buffer int) *Window {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	w := &Window{id: h.nextID, c: make(chan Event, buffer)}
	h.windows[w.id] = w
	return w
}

// Close unregisters w and closes its stream. Closing twice is a no-op.
func (h *WindowHub) Close(w *Window) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.windows[w.id]; !ok {
		return
	}
	delete(h.windows, w.id)
	close(w.c)
}

// Count returns the number of open windows.
func (h *WindowHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.windows)
}

// Broadcast implements Broadcaster.
func (h *WindowHub) Broadcast(event string, payload any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ev := Event{Name: event, Payload: payload}
	for _, w := range h.windows {
		select {
		case w.c <- ev:
		default:
		}
	}
}

// ShowAndFocus implements WindowController by asking every window to raise itself.
func (h *WindowHub) ShowAndFocus() {
	h.Broadcast(EventWindowFocus, nil)
}
