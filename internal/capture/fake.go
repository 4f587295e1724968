package capture

import (
	"errors"
	"image"
	"image/color"
	"image/draw"

	"github.com/sweeney/fishing-bot/internal/logic"
)

// FakeSource is a test double that returns scripted frames.
type FakeSource struct {
	// Frames contains the frames to return. Each call to Capture()
	// consumes the next frame; the last one repeats.
	Frames []image.Image

	index int

	// CaptureError, if set, will be returned by Capture()
	CaptureError error

	// Calls counts Capture invocations.
	Calls int
}

// NewFakeSource creates a FakeSource with the given frames.
func NewFakeSource(frames ...image.Image) *FakeSource {
	return &FakeSource{Frames: frames}
}

// Capture returns the next scripted frame.
func (f *FakeSource) Capture() (image.Image, error) {
	f.Calls++
	if f.CaptureError != nil {
		return nil, f.CaptureError
	}
	if len(f.Frames) == 0 {
		return nil, errors.New("no frames configured")
	}

	img := f.Frames[f.index]
	if f.index < len(f.Frames)-1 {
		f.index++
	}
	return img, nil
}

// Paint builds a frame of the given size with each region filled by a
// solid colour. Pixels outside every region are black.
func Paint(width, height int, fills map[logic.Region]color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{A: 255}}, image.Point{}, draw.Src)
	for r, c := range fills {
		rect := image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
		draw.Draw(img, rect, &image.Uniform{C: c}, image.Point{}, draw.Src)
	}
	return img
}
