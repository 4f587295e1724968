// Package config loads the calibration and timing record for the bot.
//
// The record is a JSON file (config.json) read through viper. Keys keep the
// names written by the calibration tool so existing files load unchanged.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sweeney/fishing-bot/internal/logic"
)

// Rect is a rectangle relative to the capture region.
type Rect struct {
	X int `mapstructure:"x"`
	Y int `mapstructure:"y"`
	W int `mapstructure:"w"`
	H int `mapstructure:"h"`
}

// Region converts the rectangle to the core's representation.
func (r Rect) Region() logic.Region {
	return logic.Region{X: r.X, Y: r.Y, W: r.W, H: r.H}
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// CaptureRegion is the absolute screen rectangle grabbed each tick.
type CaptureRegion struct {
	Top    int `mapstructure:"top"`
	Left   int `mapstructure:"left"`
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
}

// Thresholds mirrors logic.ThresholdSet with file key names.
type Thresholds struct {
	GreenMin         float64 `mapstructure:"green_min"`
	RedMin           float64 `mapstructure:"red_min"`
	WaitGreenDiffMin float64 `mapstructure:"wait_green_diff_min"`
	WaitRedDiffMin   float64 `mapstructure:"wait_red_diff_min"`
	GreenDiffMin     float64 `mapstructure:"green_diff_min"`
	LetterRedDiffMin float64 `mapstructure:"letter_red_diff_min"`
}

// Jitter is a uniform range in seconds.
type Jitter struct {
	Min float64 `mapstructure:"min"`
	Max float64 `mapstructure:"max"`
}

// Config is the complete calibration and timing record.
type Config struct {
	CaptureRegion CaptureRegion `mapstructure:"capture_region"`
	// Areas holds the wait bar and letter rectangles keyed wait/e/r/t.
	Areas map[string]Rect `mapstructure:"areas"`
	// FishingIconROI is the menu indicator. When empty the result
	// name region is used instead.
	FishingIconROI       Rect       `mapstructure:"fishing_icon_roi"`
	ResultNameROI        Rect       `mapstructure:"result_name_roi"`
	FishingIconThreshold float64    `mapstructure:"fishing_icon_threshold"`
	Thresholds           Thresholds `mapstructure:"thresholds"`

	Keys                   []string `mapstructure:"keys"`
	StartKey               string   `mapstructure:"start_key"`
	StartPressOnRun        bool     `mapstructure:"start_press_on_run"`
	StartFocusDelaySeconds float64  `mapstructure:"start_focus_delay_seconds"`
	RecoveryKey            string   `mapstructure:"recovery_key"`

	PressDelaySeconds           float64 `mapstructure:"press_delay_seconds"`
	StartWaitTimeoutMinSeconds  float64 `mapstructure:"start_wait_timeout_min_seconds"`
	StartWaitTimeoutMaxSeconds  float64 `mapstructure:"start_wait_timeout_max_seconds"`
	MenuAbsentHoldSeconds       float64 `mapstructure:"menu_absent_hold_seconds"`
	PostLastKeyMinSeconds       float64 `mapstructure:"post_last_key_min_seconds"`
	MaxSequenceIdleSeconds      float64 `mapstructure:"max_sequence_idle_seconds"`
	FallbackAfterTimeoutSeconds float64 `mapstructure:"fallback_after_timeout_seconds"`
	PostFinishDelayJitter       Jitter  `mapstructure:"post_finish_delay_jitter"`

	UsePrediction  bool `mapstructure:"use_prediction"`
	LogDebugValues bool `mapstructure:"log_debug_values"`
}

// Default returns the values used for any key missing from the file.
func Default() *Config {
	return &Config{
		CaptureRegion:        CaptureRegion{Width: 1920, Height: 1080},
		Areas:                map[string]Rect{},
		FishingIconThreshold: 75,
		Thresholds: Thresholds{
			GreenMin:         140,
			RedMin:           160,
			WaitGreenDiffMin: 10,
			WaitRedDiffMin:   15,
			GreenDiffMin:     30,
			LetterRedDiffMin: 15,
		},
		Keys:                        []string{"e", "r", "t"},
		StartKey:                    "5",
		StartPressOnRun:             true,
		RecoveryKey:                 "e",
		PressDelaySeconds:           0.5,
		StartWaitTimeoutMinSeconds:  18,
		StartWaitTimeoutMaxSeconds:  21,
		MenuAbsentHoldSeconds:       2.0,
		PostLastKeyMinSeconds:       2.0,
		MaxSequenceIdleSeconds:      8.0,
		FallbackAfterTimeoutSeconds: 1.5,
		PostFinishDelayJitter:       Jitter{Min: 1.0, Max: 1.0},
		UsePrediction:               true,
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("capture_region.top", d.CaptureRegion.Top)
	v.SetDefault("capture_region.left", d.CaptureRegion.Left)
	v.SetDefault("capture_region.width", d.CaptureRegion.Width)
	v.SetDefault("capture_region.height", d.CaptureRegion.Height)

	v.SetDefault("fishing_icon_threshold", d.FishingIconThreshold)

	v.SetDefault("thresholds.green_min", d.Thresholds.GreenMin)
	v.SetDefault("thresholds.red_min", d.Thresholds.RedMin)
	v.SetDefault("thresholds.wait_green_diff_min", d.Thresholds.WaitGreenDiffMin)
	v.SetDefault("thresholds.wait_red_diff_min", d.Thresholds.WaitRedDiffMin)
	v.SetDefault("thresholds.green_diff_min", d.Thresholds.GreenDiffMin)
	v.SetDefault("thresholds.letter_red_diff_min", d.Thresholds.LetterRedDiffMin)

	v.SetDefault("keys", d.Keys)
	v.SetDefault("start_key", d.StartKey)
	v.SetDefault("start_press_on_run", d.StartPressOnRun)
	v.SetDefault("start_focus_delay_seconds", d.StartFocusDelaySeconds)
	v.SetDefault("recovery_key", d.RecoveryKey)

	v.SetDefault("press_delay_seconds", d.PressDelaySeconds)
	v.SetDefault("start_wait_timeout_min_seconds", d.StartWaitTimeoutMinSeconds)
	v.SetDefault("start_wait_timeout_max_seconds", d.StartWaitTimeoutMaxSeconds)
	v.SetDefault("menu_absent_hold_seconds", d.MenuAbsentHoldSeconds)
	v.SetDefault("post_last_key_min_seconds", d.PostLastKeyMinSeconds)
	v.SetDefault("max_sequence_idle_seconds", d.MaxSequenceIdleSeconds)
	v.SetDefault("fallback_after_timeout_seconds", d.FallbackAfterTimeoutSeconds)
	v.SetDefault("post_finish_delay_jitter.min", d.PostFinishDelayJitter.Min)
	v.SetDefault("post_finish_delay_jitter.max", d.PostFinishDelayJitter.Max)

	v.SetDefault("use_prediction", d.UsePrediction)
	v.SetDefault("log_debug_values", d.LogDebugValues)
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		v.SetConfigType("json")
	}
	setDefaults(v)
	return v
}

// Load reads, decodes and validates the file at path.
func Load(path string) (*Config, error) {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Areas == nil {
		cfg.Areas = map[string]Rect{}
	}
	for i, k := range cfg.Keys {
		cfg.Keys[i] = strings.ToLower(strings.TrimSpace(k))
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}

// IndicatorRect returns the rectangle used to decide whether the fishing
// menu is on screen.
func (c *Config) IndicatorRect() Rect {
	if !c.FishingIconROI.Empty() {
		return c.FishingIconROI
	}
	return c.ResultNameROI
}

// Regions returns every configured region keyed by the names the classifier
// expects. Rectangles with no area are left out so they classify inactive.
func (c *Config) Regions() map[string]logic.Region {
	regions := make(map[string]logic.Region)
	for _, name := range []string{logic.RegionWait, logic.RegionE, logic.RegionR, logic.RegionT} {
		if r, ok := c.Areas[name]; ok && !r.Empty() {
			regions[name] = r.Region()
		}
	}
	if r := c.IndicatorRect(); !r.Empty() {
		regions[logic.RegionIndicator] = r.Region()
	}
	if !c.ResultNameROI.Empty() {
		regions[logic.RegionResult] = c.ResultNameROI.Region()
	}
	return regions
}

// FocusDelay is the wait before the first start press.
func (c *Config) FocusDelay() time.Duration {
	return seconds(c.StartFocusDelaySeconds)
}

// Settings converts the record into the value consumed by the state machine.
func (c *Config) Settings() logic.Settings {
	keys := make([]string, len(c.Keys))
	copy(keys, c.Keys)

	return logic.Settings{
		Thresholds: logic.ThresholdSet{
			GreenMin:         c.Thresholds.GreenMin,
			RedMin:           c.Thresholds.RedMin,
			WaitGreenDiffMin: c.Thresholds.WaitGreenDiffMin,
			WaitRedDiffMin:   c.Thresholds.WaitRedDiffMin,
			GreenDiffMin:     c.Thresholds.GreenDiffMin,
			LetterRedDiffMin: c.Thresholds.LetterRedDiffMin,
		},
		IndicatorThreshold: c.FishingIconThreshold,
		Regions:            c.Regions(),
		Keys:               keys,
		StartKey:           c.StartKey,
		StartOnRun:         c.StartPressOnRun,
		RecoveryKey:        c.RecoveryKey,
		ConfirmDelay:       seconds(c.PressDelaySeconds),
		StartTimeoutMin:    seconds(c.StartWaitTimeoutMinSeconds),
		StartTimeoutMax:    seconds(c.StartWaitTimeoutMaxSeconds),
		MenuAbsentHold:     seconds(c.MenuAbsentHoldSeconds),
		PostPressHold:      seconds(c.PostLastKeyMinSeconds),
		MaxSequenceIdle:    seconds(c.MaxSequenceIdleSeconds),
		FallbackDelay:      seconds(c.FallbackAfterTimeoutSeconds),
		FinishJitterMin:    seconds(c.PostFinishDelayJitter.Min),
		FinishJitterMax:    seconds(c.PostFinishDelayJitter.Max),
		UsePrediction:      c.UsePrediction,
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
