package screen

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeJPEG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func TestThumbnail(t *testing.T) {
	t.Run("scales down preserving aspect", func(t *testing.T) {
		thumb, err := Thumbnail(testPNG(t, 1280, 720), 640)
		require.NoError(t, err)

		b := decodeJPEG(t, thumb).Bounds()
		assert.Equal(t, 640, b.Dx())
		assert.Equal(t, 360, b.Dy())
	})

	t.Run("does not upscale", func(t *testing.T) {
		thumb, err := Thumbnail(testPNG(t, 200, 100), 640)
		require.NoError(t, err)

		b := decodeJPEG(t, thumb).Bounds()
		assert.Equal(t, 200, b.Dx())
		assert.Equal(t, 100, b.Dy())
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := Thumbnail([]byte("not an image"), 640)
		assert.Error(t, err)
	})
}

func TestCrop(t *testing.T) {
	thumb, err := Crop(testPNG(t, 400, 100), image.Rect(200, 0, 400, 100), 640)
	require.NoError(t, err)
	b := decodeJPEG(t, thumb).Bounds()
	assert.Equal(t, 200, b.Dx())
	assert.Equal(t, 100, b.Dy())

	_, err = Crop(testPNG(t, 10, 10), image.Rect(50, 50, 60, 60), 640)
	assert.Error(t, err)
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scr-2.png"), testPNG(t, 64, 32), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scr-1.png"), testPNG(t, 64, 32), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	src := NewDirSource(dir, 32)
	ctx := context.Background()

	screens, err := src.List(ctx)
	require.NoError(t, err)
	require.Len(t, screens, 2)
	assert.Equal(t, "scr-1", screens[0].ID)
	assert.Equal(t, "scr-2", screens[1].ID)

	img, err := src.Capture(ctx, "scr-1")
	require.NoError(t, err)
	assert.Equal(t, "scr-1", img.ScreenID)
	assert.Equal(t, "image/jpeg", img.MimeType)
	assert.Equal(t, 32, decodeJPEG(t, img.Data).Bounds().Dx())

	_, err = src.Capture(ctx, "scr-9")
	assert.True(t, errors.Is(err, ErrScreenNotFound))
}

const xrandrOutput = `Monitors: 2
 0: +*eDP-1 1920/344x1080/194+0+0  eDP-1
 1: +HDMI-1 2560/597x1440/336+1920+0  HDMI-1
`

func TestParseXrandrMonitors(t *testing.T) {
	screens := parseXrandrMonitors(xrandrOutput)
	require.Len(t, screens, 2)

	assert.Equal(t, "eDP-1", screens[0].ID)
	assert.Equal(t, "eDP-1 (1920x1080)", screens[0].Name)
	assert.Equal(t, "HDMI-1", screens[1].ID)
	assert.Equal(t, 1920, screens[1].X)
	assert.Equal(t, 2560, screens[1].Width)
	assert.Equal(t, 1440, screens[1].Height)
}

func TestParseSystemProfiler(t *testing.T) {
	out := []byte(`{"SPDisplaysDataType":[{"_name":"Apple M1","spdisplays_ndrvs":[{"_name":"Color LCD"},{"_name":""}]}]}`)
	screens, err := parseSystemProfiler(out)
	require.NoError(t, err)
	require.Len(t, screens, 2)
	assert.Equal(t, "display-1", screens[0].ID)
	assert.Equal(t, "Color LCD", screens[0].Name)
	assert.Equal(t, "Screen 2", screens[1].Name)

	_, err = parseSystemProfiler([]byte("nope"))
	assert.Error(t, err)
}

// fakeRunner records invocations and returns canned output per command name.
type fakeRunner struct {
	outputs map[string][]byte
	errs    map[string]error
	calls   []string
}

func (f *fakeRunner) run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, name)
	if err := f.errs[name]; err != nil {
		return nil, err
	}
	return f.outputs[name], nil
}

func newTestCommandSource(t *testing.T, r *fakeRunner, tools ...string) *CommandSource {
	t.Helper()
	src := NewCommandSource(320)
	src.GOOS = "linux"
	src.Run = r.run
	src.LookPath = func(name string) (string, error) {
		for _, tool := range tools {
			if tool == name {
				return "/usr/bin/" + name, nil
			}
		}
		return "", errors.New("not found")
	}
	return src
}

func TestCommandSource_CaptureGrim(t *testing.T) {
	r := &fakeRunner{outputs: map[string][]byte{
		"xrandr": []byte(xrandrOutput),
		"grim":   testPNG(t, 640, 360),
	}}
	src := newTestCommandSource(t, r, "grim")

	img, err := src.Capture(context.Background(), "HDMI-1")
	require.NoError(t, err)
	assert.Equal(t, "HDMI-1", img.ScreenID)
	assert.Equal(t, 320, decodeJPEG(t, img.Data).Bounds().Dx())
	assert.Equal(t, []string{"xrandr", "grim"}, r.calls)
}

func TestCommandSource_CaptureImportCropsMonitor(t *testing.T) {
	r := &fakeRunner{outputs: map[string][]byte{
		"xrandr": []byte(" 0: +*a 100/1x50/1+0+0  left\n 1: +b 100/1x50/1+100+0  right\n"),
		"import": testPNG(t, 200, 50),
	}}
	src := newTestCommandSource(t, r, "import")

	img, err := src.Capture(context.Background(), "right")
	require.NoError(t, err)
	b := decodeJPEG(t, img.Data).Bounds()
	assert.Equal(t, 100, b.Dx())
	assert.Equal(t, 50, b.Dy())
}

func TestCommandSource_Errors(t *testing.T) {
	t.Run("unknown screen", func(t *testing.T) {
		r := &fakeRunner{outputs: map[string][]byte{"xrandr": []byte(xrandrOutput)}}
		src := newTestCommandSource(t, r, "grim")
		_, err := src.Capture(context.Background(), "DP-9")
		assert.True(t, errors.Is(err, ErrScreenNotFound))
	})

	t.Run("no capture tool", func(t *testing.T) {
		r := &fakeRunner{outputs: map[string][]byte{"xrandr": []byte(xrandrOutput)}}
		src := newTestCommandSource(t, r)
		_, err := src.Capture(context.Background(), "eDP-1")
		assert.True(t, errors.Is(err, ErrUnsupported))
	})

	t.Run("unsupported platform", func(t *testing.T) {
		src := newTestCommandSource(t, &fakeRunner{})
		src.GOOS = "windows"
		_, err := src.List(context.Background())
		assert.True(t, errors.Is(err, ErrUnsupported))
	})
}
