package ocr

import "github.com/sweeney/fishing-bot/internal/logic"

// FakeReader is a test double that returns scripted results.
type FakeReader struct {
	// Results contains the texts to return, one per call. The last repeats.
	Results []string

	index int

	// ReadError, if set, will be returned by ReadResult()
	ReadError error

	// Calls counts ReadResult invocations.
	Calls int
	// Regions holds the region passed to each call.
	Regions []logic.Region
}

// NewFakeReader creates a FakeReader returning results in order.
func NewFakeReader(results ...string) *FakeReader {
	return &FakeReader{Results: results}
}

// ReadResult returns the next scripted text.
func (f *FakeReader) ReadResult(region logic.Region) (string, error) {
	f.Calls++
	f.Regions = append(f.Regions, region)
	if f.ReadError != nil {
		return "", f.ReadError
	}
	if len(f.Results) == 0 {
		return "", ErrNoText
	}
	text := f.Results[f.index]
	if f.index < len(f.Results)-1 {
		f.index++
	}
	return text, nil
}
