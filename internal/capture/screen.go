package capture

import (
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
)

// ScreenSource captures a fixed rectangle of the desktop.
type ScreenSource struct {
	rect image.Rectangle
}

// NewScreenSource creates a source for the absolute screen rectangle with
// the given origin and size.
func NewScreenSource(left, top, width, height int) (*ScreenSource, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("capture: invalid size %dx%d", width, height)
	}
	if screenshot.NumActiveDisplays() == 0 {
		return nil, fmt.Errorf("capture: no active displays")
	}
	return &ScreenSource{rect: image.Rect(left, top, left+width, top+height)}, nil
}

// Capture grabs the rectangle. The returned frame's origin is (0,0).
func (s *ScreenSource) Capture() (image.Image, error) {
	img, err := screenshot.CaptureRect(s.rect)
	if err != nil {
		return nil, fmt.Errorf("capture screen: %w", err)
	}
	return img, nil
}
