package screen

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// DefaultThumbnailWidth is the width screens are scaled down to before analysis.
const DefaultThumbnailWidth = 640

const thumbnailQuality = 70

// Thumbnail decodes a PNG or JPEG capture and re-encodes it as a JPEG no
// wider than width. Images already narrower than width are only re-encoded.
func Thumbnail(data []byte, width int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode capture: %w", err)
	}
	return encodeThumbnail(src, width)
}

// Crop cuts rect out of a decoded capture and returns it as a thumbnail.
func Crop(data []byte, rect image.Rectangle, width int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode capture: %w", err)
	}
	rect = rect.Intersect(src.Bounds())
	if rect.Empty() {
		return nil, fmt.Errorf("crop %v outside capture bounds %v", rect, src.Bounds())
	}
	sub := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(sub, sub.Bounds(), src, rect.Min, draw.Src)
	return encodeThumbnail(sub, width)
}

func encodeThumbnail(src image.Image, width int) ([]byte, error) {
	if width <= 0 {
		width = DefaultThumbnailWidth
	}
	b := src.Bounds()
	dst := src
	if b.Dx() > width {
		height := b.Dy() * width / b.Dx()
		if height < 1 {
			height = 1
		}
		scaled := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), src, b, draw.Src, nil)
		dst = scaled
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: thumbnailQuality}); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
