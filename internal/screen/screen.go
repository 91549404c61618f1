// Package screen enumerates capture targets and produces thumbnail images of them.
package screen

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrScreenNotFound is returned by Capture when the id does not resolve.
	ErrScreenNotFound = errors.New("screen not found")
	// ErrUnsupported is returned when the platform has no capture backend.
	ErrUnsupported = errors.New("screen capture not supported on this platform")
)

// Screen describes one capture target.
type Screen struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	X      int    `json:"-"`
	Y      int    `json:"-"`
}

// Image is a still thumbnail captured from one screen.
type Image struct {
	ScreenID   string
	Name       string
	MimeType   string
	Data       []byte
	CapturedAt time.Time
}

// Source enumerates screens and captures thumbnails of them.
type Source interface {
	List(ctx context.Context) ([]Screen, error)
	Capture(ctx context.Context, id string) (*Image, error)
}
