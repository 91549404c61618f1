package screen

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Runner executes an external command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok && len(ee.Stderr) > 0 {
			return nil, fmt.Errorf("%s: %w (%s)", name, err, strings.TrimSpace(string(ee.Stderr)))
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// CommandSource captures screens with the platform's screenshot tools:
// xrandr + grim/import on Linux, system_profiler + screencapture on macOS.
type CommandSource struct {
	GOOS     string
	Width    int
	Run      Runner
	LookPath func(string) (string, error)
	TempDir  string
	now      func() time.Time
}

// NewCommandSource creates a CommandSource for the running platform.
func NewCommandSource(width int) *CommandSource {
	return &CommandSource{
		GOOS:     runtime.GOOS,
		Width:    width,
		Run:      execRunner,
		LookPath: exec.LookPath,
		TempDir:  os.TempDir(),
		now:      time.Now,
	}
}

// List enumerates the attached displays.
func (c *CommandSource) List(ctx context.Context) ([]Screen, error) {
	switch c.GOOS {
	case "linux", "freebsd", "openbsd":
		out, err := c.Run(ctx, "xrandr", "--listmonitors")
		if err != nil {
			return nil, fmt.Errorf("list monitors: %w", err)
		}
		return parseXrandrMonitors(string(out)), nil
	case "darwin":
		out, err := c.Run(ctx, "system_profiler", "SPDisplaysDataType", "-json")
		if err != nil {
			return nil, fmt.Errorf("list displays: %w", err)
		}
		return parseSystemProfiler(out)
	default:
		return nil, ErrUnsupported
	}
}

// Capture grabs the screen behind id and scales it to a thumbnail.
func (c *CommandSource) Capture(ctx context.Context, id string) (*Image, error) {
	screens, err := c.List(ctx)
	if err != nil {
		return nil, err
	}

	var target *Screen
	for i := range screens {
		if screens[i].ID == id {
			target = &screens[i]
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("%w: %s", ErrScreenNotFound, id)
	}

	var thumb []byte
	switch c.GOOS {
	case "darwin":
		thumb, err = c.captureDarwin(ctx, target)
	default:
		thumb, err = c.captureX(ctx, target)
	}
	if err != nil {
		return nil, fmt.Errorf("capture %s: %w", id, err)
	}

	return &Image{
		ScreenID:   target.ID,
		Name:       target.Name,
		MimeType:   "image/jpeg",
		Data:       thumb,
		CapturedAt: c.now().UTC(),
	}, nil
}

func (c *CommandSource) captureX(ctx context.Context, s *Screen) ([]byte, error) {
	if _, err := c.LookPath("grim"); err == nil {
		raw, err := c.Run(ctx, "grim", "-o", s.ID, "-")
		if err == nil {
			return Thumbnail(raw, c.Width)
		}
	}
	if _, err := c.LookPath("import"); err != nil {
		return nil, fmt.Errorf("%w: neither grim nor import found", ErrUnsupported)
	}
	raw, err := c.Run(ctx, "import", "-silent", "-window", "root", "png:-")
	if err != nil {
		return nil, err
	}
	return Crop(raw, image.Rect(s.X, s.Y, s.X+s.Width, s.Y+s.Height), c.Width)
}

func (c *CommandSource) captureDarwin(ctx context.Context, s *Screen) ([]byte, error) {
	f, err := os.CreateTemp(c.TempDir, "focus-capture-*.png")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()
	_ = f.Close()
	defer func() { _ = os.Remove(path) }()

	display := strings.TrimPrefix(s.ID, "display-")
	if _, err := c.Run(ctx, "screencapture", "-x", "-t", "png", "-D", display, path); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read capture: %w", err)
	}
	return Thumbnail(raw, c.Width)
}

// " 0: +*eDP-1 1920/344x1080/194+0+0  eDP-1"
var xrandrMonitorRe = regexp.MustCompile(`^\s*\d+:\s+\S+\s+(\d+)/\d+x(\d+)/\d+\+(\d+)\+(\d+)\s+(\S+)`)

func parseXrandrMonitors(out string) []Screen {
	var screens []Screen
	for _, line := range strings.Split(out, "\n") {
		m := xrandrMonitorRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		w, _ := strconv.Atoi(m[1])
		h, _ := strconv.Atoi(m[2])
		x, _ := strconv.Atoi(m[3])
		y, _ := strconv.Atoi(m[4])
		screens = append(screens, Screen{
			ID:     m[5],
			Name:   fmt.Sprintf("%s (%dx%d)", m[5], w, h),
			Width:  w,
			Height: h,
			X:      x,
			Y:      y,
		})
	}
	return screens
}

type systemProfilerDisplays struct {
	Displays []struct {
		Screens []struct {
			Name       string `json:"_name"`
			Resolution string `json:"_spdisplays_resolution"`
		} `json:"spdisplays_ndrvs"`
	} `json:"SPDisplaysDataType"`
}

func parseSystemProfiler(out []byte) ([]Screen, error) {
	var parsed systemProfilerDisplays
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, fmt.Errorf("parse system_profiler output: %w", err)
	}

	var screens []Screen
	for _, gpu := range parsed.Displays {
		for _, d := range gpu.Screens {
			n := len(screens) + 1
			name := d.Name
			if name == "" {
				name = fmt.Sprintf("Screen %d", n)
			}
			screens = append(screens, Screen{
				ID:   fmt.Sprintf("display-%d", n),
				Name: name,
			})
		}
	}
	return screens, nil
}
