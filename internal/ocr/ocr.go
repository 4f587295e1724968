// Package ocr reads the caught fish's name from the result banner.
// The real implementation crops the latest captured frame and feeds it to
// tesseract; the fake returns scripted text.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"strings"
	"time"

	"github.com/sweeney/fishing-bot/internal/logic"
)

// ErrNoFrame is returned before any frame has been captured.
var ErrNoFrame = errors.New("ocr: no frame captured")

// ErrNoText is returned when tesseract recognises nothing.
var ErrNoText = errors.New("ocr: no text recognised")

// ErrNoRegion is returned when no result region is configured.
var ErrNoRegion = errors.New("ocr: result region not configured")

// Frames supplies the most recent captured frame.
type Frames interface {
	Frame() image.Image
}

// DefaultTimeout bounds a single tesseract invocation.
const DefaultTimeout = 5 * time.Second

// Tesseract implements logic.ResultReader.
type Tesseract struct {
	Path    string
	Frames  Frames
	Timeout time.Duration

	command func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewTesseract locates tesseract on PATH.
func NewTesseract(frames Frames) (*Tesseract, error) {
	path, err := exec.LookPath("tesseract")
	if err != nil {
		return nil, fmt.Errorf("find tesseract: %w", err)
	}
	return &Tesseract{
		Path:    path,
		Frames:  frames,
		Timeout: DefaultTimeout,
		command: exec.CommandContext,
	}, nil
}

// ReadResult recognises the text in region of the latest frame. region is
// relative to the frame origin.
func (t *Tesseract) ReadResult(region logic.Region) (string, error) {
	if region.Empty() {
		return "", ErrNoRegion
	}
	img := t.Frames.Frame()
	if img == nil {
		return "", ErrNoFrame
	}
	crop, err := Crop(img, region)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, crop); err != nil {
		return "", fmt.Errorf("encode crop: %w", err)
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	command := t.command
	if command == nil {
		command = exec.CommandContext
	}
	cmd := command(ctx, t.Path, "stdin", "stdout", "--psm", "7")
	cmd.Stdin = &buf
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("run tesseract: %w (%s)", err, strings.TrimSpace(stderr.String()))
	}

	text := Clean(string(out))
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// Crop returns the part of img covered by region, relative to img's origin.
func Crop(img image.Image, region logic.Region) (image.Image, error) {
	r := image.Rect(region.X, region.Y, region.X+region.W, region.Y+region.H).
		Add(img.Bounds().Min).
		Intersect(img.Bounds())
	if r.Empty() {
		return nil, fmt.Errorf("ocr: region %+v outside frame %v", region, img.Bounds())
	}
	si, ok := img.(subImager)
	if !ok {
		return nil, fmt.Errorf("ocr: frame type %T cannot be cropped", img)
	}
	return si.SubImage(r), nil
}

// Clean collapses whitespace and drops everything after the first line.
func Clean(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = s[:i]
	}
	return strings.Join(strings.Fields(s), " ")
}
