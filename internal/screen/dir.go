package screen

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DirSource treats every image file in a directory as a screen. The screen id
// is the file name without its extension. Useful for demos and tests where no
// display is attached.
type DirSource struct {
	Dir   string
	Width int
	now   func() time.Time
}

// NewDirSource creates a source backed by the images in dir.
func NewDirSource(dir string, width int) *DirSource {
	return &DirSource{Dir: dir, Width: width, now: time.Now}
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}

// List returns one screen per image file, sorted by name.
func (d *DirSource) List(_ context.Context) ([]Screen, error) {
	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		return nil, fmt.Errorf("read screen dir: %w", err)
	}

	var screens []Screen
	for _, e := range entries {
		if e.IsDir() || !isImageFile(e.Name()) {
			continue
		}
		screens = append(screens, Screen{
			ID:   strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())),
			Name: e.Name(),
		})
	}
	sort.Slice(screens, func(i, j int) bool { return screens[i].ID < screens[j].ID })
	return screens, nil
}

// Capture reads the file behind id and returns it as a thumbnail.
func (d *DirSource) Capture(ctx context.Context, id string) (*Image, error) {
	screens, err := d.List(ctx)
	if err != nil {
		return nil, err
	}

	for _, s := range screens {
		if s.ID != id {
			continue
		}
		data, err := os.ReadFile(filepath.Join(d.Dir, s.Name))
		if err != nil {
			return nil, fmt.Errorf("read screen %s: %w", id, err)
		}
		thumb, err := Thumbnail(data, d.Width)
		if err != nil {
			return nil, fmt.Errorf("screen %s: %w", id, err)
		}
		return &Image{
			ScreenID:   id,
			Name:       s.Name,
			MimeType:   "image/jpeg",
			Data:       thumb,
			CapturedAt: d.now().UTC(),
		}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrScreenNotFound, id)
}
