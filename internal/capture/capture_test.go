package capture

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/sweeney/fishing-bot/internal/logic"
)

func TestSampleMean(t *testing.T) {
	r := logic.Region{X: 2, Y: 2, W: 4, H: 2}
	img := Paint(10, 10, map[logic.Region]color.RGBA{
		r: {R: 50, G: 200, B: 10, A: 255},
	})

	got := Sample(img, r)
	want := logic.ColorSample{Red: 50, Green: 200, Blue: 10}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestSampleAveragesMixedPixels(t *testing.T) {
	// Left half green, right half red.
	img := Paint(4, 1, map[logic.Region]color.RGBA{
		{X: 0, Y: 0, W: 2, H: 1}: {G: 200, A: 255},
		{X: 2, Y: 0, W: 2, H: 1}: {R: 100, A: 255},
	})

	got := Sample(img, logic.Region{X: 0, Y: 0, W: 4, H: 1})
	if got.Green != 100 || got.Red != 50 || got.Blue != 0 {
		t.Errorf("got %+v, want G=100 R=50 B=0", got)
	}
}

func TestSampleEmptyAndOutOfBounds(t *testing.T) {
	img := Paint(10, 10, map[logic.Region]color.RGBA{
		{X: 0, Y: 0, W: 10, H: 10}: {R: 255, G: 255, B: 255, A: 255},
	})

	tests := []struct {
		name   string
		region logic.Region
	}{
		{"zero width", logic.Region{X: 1, Y: 1, W: 0, H: 5}},
		{"zero height", logic.Region{X: 1, Y: 1, W: 5, H: 0}},
		{"outside", logic.Region{X: 20, Y: 20, W: 5, H: 5}},
		{"negative", logic.Region{X: -10, Y: -10, W: 5, H: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sample(img, tt.region); got != (logic.ColorSample{}) {
				t.Errorf("got %+v, want zero sample", got)
			}
		})
	}
}

func TestSamplePartialRegionIsZero(t *testing.T) {
	img := Paint(10, 10, map[logic.Region]color.RGBA{
		{X: 0, Y: 0, W: 10, H: 10}: {G: 240, A: 255},
	})

	tests := []struct {
		name   string
		region logic.Region
	}{
		{"past right and bottom", logic.Region{X: 8, Y: 8, W: 5, H: 5}},
		{"past right", logic.Region{X: 6, Y: 0, W: 5, H: 2}},
		{"past bottom", logic.Region{X: 0, Y: 9, W: 2, H: 2}},
		{"negative origin", logic.Region{X: -1, Y: 0, W: 3, H: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sample(img, tt.region)
			if got != (logic.ColorSample{}) {
				t.Fatalf("got %+v, want zero sample", got)
			}
			th := logic.ThresholdSet{GreenMin: 140, RedMin: 160, GreenDiffMin: 30, LetterRedDiffMin: 15}
			obs := Observe(img, map[string]logic.Region{logic.RegionE: tt.region})
			if c := logic.Classify(obs, th, 75); c.Letters[logic.RegionE].Green {
				t.Error("off-frame letter region classified green")
			}
		})
	}

	// Touching the edge exactly is still inside.
	if got := Sample(img, logic.Region{X: 5, Y: 5, W: 5, H: 5}); got.Green != 240 {
		t.Errorf("edge region: got %+v, want green 240", got)
	}
}

func TestSampleGenericImage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.NRGBA{R: 30, G: 60, B: 90, A: 255})
		}
	}

	got := Sample(img, logic.Region{X: 1, Y: 1, W: 2, H: 2})
	want := logic.ColorSample{Red: 30, Green: 60, Blue: 90}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestSampleFrameWithOffsetOrigin(t *testing.T) {
	full := Paint(20, 20, map[logic.Region]color.RGBA{
		{X: 10, Y: 10, W: 2, H: 2}: {R: 200, A: 255},
	})
	// A sub-image keeps absolute coordinates; regions stay frame-relative.
	sub := full.SubImage(image.Rect(10, 10, 20, 20))

	got := Sample(sub, logic.Region{X: 0, Y: 0, W: 2, H: 2})
	if got.Red != 200 {
		t.Errorf("got %+v, want red 200", got)
	}
}

func TestObserveSkipsResultRegion(t *testing.T) {
	wait := logic.Region{X: 0, Y: 0, W: 4, H: 2}
	img := Paint(10, 10, map[logic.Region]color.RGBA{wait: {G: 200, R: 20, B: 20, A: 255}})

	obs := Observe(img, map[string]logic.Region{
		logic.RegionWait:   wait,
		logic.RegionResult: {X: 0, Y: 5, W: 5, H: 5},
	})

	if _, ok := obs.Samples[logic.RegionResult]; ok {
		t.Error("result region should not be sampled")
	}
	if obs.Samples[logic.RegionWait].Green != 200 {
		t.Errorf("wait: got %+v", obs.Samples[logic.RegionWait])
	}
}

func TestFakeSource(t *testing.T) {
	a := Paint(1, 1, nil)
	b := Paint(2, 2, nil)
	f := NewFakeSource(a, b)

	for i, want := range []image.Image{a, b, b} {
		got, err := f.Capture()
		if err != nil {
			t.Fatalf("capture %d: %v", i, err)
		}
		if got != want {
			t.Errorf("capture %d: wrong frame", i)
		}
	}
	if f.Calls != 3 {
		t.Errorf("Calls: got %d, want 3", f.Calls)
	}

	f.CaptureError = errors.New("boom")
	if _, err := f.Capture(); err == nil {
		t.Error("expected CaptureError")
	}
}

func TestLatest(t *testing.T) {
	var l Latest
	if l.Frame() != nil {
		t.Error("expected nil before first Set")
	}
	img := Paint(1, 1, nil)
	l.Set(img)
	if l.Frame() != img {
		t.Error("Frame should return the stored image")
	}
}
