// Package capture grabs frames of the game window and reduces configured
// regions to mean colour samples.
// The real implementation reads the screen; the fake serves scripted frames.
package capture

import (
	"image"
	"sync"

	"github.com/sweeney/fishing-bot/internal/logic"
)

// Source produces one frame per call.
type Source interface {
	Capture() (image.Image, error)
}

// Sample returns the mean colour of region within img. Regions are relative
// to the frame origin. A region with no area, or one that is not wholly
// inside the frame, samples as zero.
func Sample(img image.Image, region logic.Region) logic.ColorSample {
	if region.Empty() {
		return logic.ColorSample{}
	}
	b := img.Bounds()
	r := image.Rect(region.X, region.Y, region.X+region.W, region.Y+region.H).Add(b.Min)
	if !r.In(b) {
		return logic.ColorSample{}
	}

	if rgba, ok := img.(*image.RGBA); ok {
		return sampleRGBA(rgba, r)
	}

	var sr, sg, sb float64
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			cr, cg, cb, _ := img.At(x, y).RGBA()
			sr += float64(cr >> 8)
			sg += float64(cg >> 8)
			sb += float64(cb >> 8)
		}
	}
	n := float64(r.Dx() * r.Dy())
	return logic.ColorSample{Red: sr / n, Green: sg / n, Blue: sb / n}
}

func sampleRGBA(img *image.RGBA, r image.Rectangle) logic.ColorSample {
	var sr, sg, sb uint64
	for y := r.Min.Y; y < r.Max.Y; y++ {
		i := img.PixOffset(r.Min.X, y)
		row := img.Pix[i : i+4*r.Dx()]
		for p := 0; p < len(row); p += 4 {
			sr += uint64(row[p])
			sg += uint64(row[p+1])
			sb += uint64(row[p+2])
		}
	}
	n := float64(r.Dx() * r.Dy())
	return logic.ColorSample{Red: float64(sr) / n, Green: float64(sg) / n, Blue: float64(sb) / n}
}

// Observe samples every region of img. The result region is skipped since
// it is read as text, not colour.
func Observe(img image.Image, regions map[string]logic.Region) logic.Observation {
	obs := logic.Observation{Samples: make(map[string]logic.ColorSample, len(regions))}
	for name, r := range regions {
		if name == logic.RegionResult {
			continue
		}
		obs.Samples[name] = Sample(img, r)
	}
	return obs
}

// Latest holds the most recent frame so the result reader can crop it
// without a second capture.
type Latest struct {
	mu  sync.RWMutex
	img image.Image
}

// Set stores img as the latest frame.
func (l *Latest) Set(img image.Image) {
	l.mu.Lock()
	l.img = img
	l.mu.Unlock()
}

// Frame returns the latest frame, or nil before the first capture.
func (l *Latest) Frame() image.Image {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.img
}
