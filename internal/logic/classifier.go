package logic

import "math"

// Activation is the classification of one region at one tick.
type Activation struct {
	Green bool
	Red   bool
}

// Classification is the per-tick result of classifying all regions.
type Classification struct {
	Wait      Activation
	Letters   map[string]Activation
	Indicator bool
}

// LettersActive reports whether any letter is green this tick.
func (c Classification) LettersActive() bool {
	for _, a := range c.Letters {
		if a.Green {
			return true
		}
	}
	return false
}

// Classify turns raw samples into activation flags.
func Classify(obs Observation, th ThresholdSet, indicatorThreshold float64) Classification {
	c := Classification{Letters: make(map[string]Activation, len(Letters))}

	if s, ok := obs.Samples[RegionWait]; ok {
		c.Wait = Activation{
			Green: greenActive(s, th.GreenMin, th.WaitGreenDiffMin),
			Red:   redActive(s, th.RedMin, th.WaitRedDiffMin),
		}
	}

	for _, name := range Letters {
		s, ok := obs.Samples[name]
		if !ok {
			c.Letters[name] = Activation{}
			continue
		}
		red := redActive(s, th.RedMin, th.LetterRedDiffMin)
		c.Letters[name] = Activation{
			Green: !red && greenActive(s, th.GreenMin, th.GreenDiffMin),
			Red:   red,
		}
	}

	if s, ok := obs.Samples[RegionIndicator]; ok {
		c.Indicator = s.Brightness() > indicatorThreshold
	}
	return c
}

// greenActive requires both an absolute floor and a margin over the other channels.
func greenActive(s ColorSample, floor, diff float64) bool {
	return s.Green >= floor && s.Green-math.Max(s.Red, s.Blue) > diff
}

func redActive(s ColorSample, floor, diff float64) bool {
	return s.Red >= floor && s.Red-math.Max(s.Green, s.Blue) > diff
}
