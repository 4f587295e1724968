package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/sweeney/fishing-bot/internal/logic"
)

// FishEntry is one known fish and the key sequence that catches it.
type FishEntry struct {
	Name     string `mapstructure:"name"`
	Sequence string `mapstructure:"sequence"`
}

// FishData is the contents of fish_data.json.
type FishData struct {
	Sequences []FishEntry `mapstructure:"fish_sequences"`
	// Locations maps location -> bait -> fish names that bite there.
	Locations      map[string]map[string][]string `mapstructure:"locations"`
	ActiveLocation string                         `mapstructure:"active_location"`
	ActiveBait     string                         `mapstructure:"active_bait"`
}

// LoadFishData reads the sequence file at path.
func LoadFishData(path string) (*FishData, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read fish data %s: %w", path, err)
	}

	var d FishData
	if err := v.Unmarshal(&d); err != nil {
		return nil, fmt.Errorf("decode fish data: %w", err)
	}
	return &d, nil
}

// Pool returns the sequences the predictor should consider. When an active
// location and bait are set and listed under locations, only fish named
// there are returned; otherwise every sequence is.
func (d *FishData) Pool() []logic.FishSequence {
	allowed := d.allowedNames()

	pool := make([]logic.FishSequence, 0, len(d.Sequences))
	for _, f := range d.Sequences {
		if allowed != nil && !allowed[strings.ToLower(f.Name)] {
			continue
		}
		pool = append(pool, logic.FishSequence{Name: f.Name, Sequence: f.Sequence})
	}
	return pool
}

// allowedNames returns nil when no narrowing applies.
func (d *FishData) allowedNames() map[string]bool {
	if d.ActiveLocation == "" || d.ActiveBait == "" {
		return nil
	}
	baits, ok := lookupFold(d.Locations, d.ActiveLocation)
	if !ok {
		return nil
	}
	names, ok := lookupFold(baits, d.ActiveBait)
	if !ok {
		return nil
	}

	allowed := make(map[string]bool, len(names))
	for _, n := range names {
		allowed[strings.ToLower(n)] = true
	}
	return allowed
}

// lookupFold finds key ignoring case; viper lowercases map keys on read.
func lookupFold[V any](m map[string]V, key string) (V, bool) {
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	var zero V
	return zero, false
}
