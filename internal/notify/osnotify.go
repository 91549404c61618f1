package notify

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// ErrUnsupported is returned when no OS notification backend is available.
var ErrUnsupported = errors.New("os notifications not supported")

// Notification is one OS-level alert.
type Notification struct {
	Title string
	Body  string
	// Tag coalesces repeated alerts of the same kind in the notification center.
	Tag        string
	Persistent bool
}

// Handle follows a shown notification.
type Handle interface {
	// Activated is closed when the user clicks the notification.
	Activated() <-chan struct{}
	// Done is closed once the notification can no longer be activated.
	Done() <-chan struct{}
}

// OSNotifier shows OS-level notifications.
type OSNotifier interface {
	Show(ctx context.Context, n Notification) (Handle, error)
}

// Runner executes a command and returns its stdout once it exits.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

type handle struct {
	activated chan struct{}
	done      chan struct{}
}

func newHandle() *handle {
	return &handle{activated: make(chan struct{}), done: make(chan struct{})}
}

func (h *handle) Activated() <-chan struct{} { return h.activated }
func (h *handle) Done() <-chan struct{}      { return h.done }

// CommandNotifier shows notifications through notify-send on Linux and
// osascript on macOS. Only notify-send reports clicks.
type CommandNotifier struct {
	AppName  string
	GOOS     string
	Run      Runner
	LookPath func(string) (string, error)
}

// NewCommandNotifier creates a notifier for the running platform.
func NewCommandNotifier(appName string) *CommandNotifier {
	return &CommandNotifier{
		AppName:  appName,
		GOOS:     runtime.GOOS,
		Run:      execRunner,
		LookPath: exec.LookPath,
	}
}

// Show starts the notification and returns immediately. The command runs
// until the notification closes, bounded by ctx.
func (c *CommandNotifier) Show(ctx context.Context, n Notification) (Handle, error) {
	name, args, err := c.command(n)
	if err != nil {
		return nil, err
	}

	h := newHandle()
	go func() {
		defer close(h.done)
		out, err := c.Run(ctx, name, args...)
		if err != nil {
			return
		}
		if strings.TrimSpace(string(out)) == "default" {
			close(h.activated)
		}
	}()
	return h, nil
}

func (c *CommandNotifier) command(n Notification) (string, []string, error) {
	switch c.GOOS {
	case "darwin":
		if _, err := c.LookPath("osascript"); err != nil {
			return "", nil, ErrUnsupported
		}
		script := fmt.Sprintf("display notification %s with title %s", appleQuote(n.Body), appleQuote(n.Title))
		return "osascript", []string{"-e", script}, nil
	case "linux", "freebsd", "openbsd", "netbsd":
		if _, err := c.LookPath("notify-send"); err != nil {
			return "", nil, ErrUnsupported
		}
		args := []string{"--app-name=" + c.AppName, "--wait", "--action=default=Open"}
		if n.Tag != "" {
			args = append(args, "--hint=string:x-dunst-stack-tag:"+n.Tag, "--hint=string:x-canonical-private-synchronous:"+n.Tag)
		}
		if n.Persistent {
			args = append(args, "--urgency=critical", "--expire-time=0")
		}
		args = append(args, n.Title, n.Body)
		return "notify-send", args, nil
	}
	return "", nil, ErrUnsupported
}

func appleQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// NopNotifier drops every notification.
type NopNotifier struct{}

// Show implements OSNotifier.
func (NopNotifier) Show(context.Context, Notification) (Handle, error) {
	return nil, ErrUnsupported
}
