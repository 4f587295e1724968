package config

import (
	"fmt"
	"strings"
)

// ValidationError is a single invalid field.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects every problem found in one pass.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// Validate checks the record and returns every violation.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	if c.CaptureRegion.Width <= 0 || c.CaptureRegion.Height <= 0 {
		errs = append(errs, ValidationError{
			Field:   "capture_region",
			Value:   fmt.Sprintf("%dx%d", c.CaptureRegion.Width, c.CaptureRegion.Height),
			Message: "must have positive width and height",
		})
	}

	if len(c.Keys) == 0 {
		errs = append(errs, ValidationError{Field: "keys", Value: c.Keys, Message: "must list at least one key"})
	}
	for i, k := range c.Keys {
		if k == "" {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("keys[%d]", i), Value: k, Message: "must not be empty"})
		}
	}
	if c.StartPressOnRun && c.StartKey == "" {
		errs = append(errs, ValidationError{Field: "start_key", Value: c.StartKey, Message: "required when start_press_on_run is set"})
	}
	if c.RecoveryKey == "" {
		errs = append(errs, ValidationError{Field: "recovery_key", Value: c.RecoveryKey, Message: "must not be empty"})
	}

	if c.FishingIconThreshold < 0 || c.FishingIconThreshold > 255 {
		errs = append(errs, ValidationError{Field: "fishing_icon_threshold", Value: c.FishingIconThreshold, Message: "must be between 0 and 255"})
	}

	nonNegative := []struct {
		field string
		value float64
	}{
		{"start_focus_delay_seconds", c.StartFocusDelaySeconds},
		{"press_delay_seconds", c.PressDelaySeconds},
		{"start_wait_timeout_min_seconds", c.StartWaitTimeoutMinSeconds},
		{"menu_absent_hold_seconds", c.MenuAbsentHoldSeconds},
		{"post_last_key_min_seconds", c.PostLastKeyMinSeconds},
		{"max_sequence_idle_seconds", c.MaxSequenceIdleSeconds},
		{"fallback_after_timeout_seconds", c.FallbackAfterTimeoutSeconds},
		{"post_finish_delay_jitter.min", c.PostFinishDelayJitter.Min},
	}
	for _, f := range nonNegative {
		if f.value < 0 {
			errs = append(errs, ValidationError{Field: f.field, Value: f.value, Message: "must not be negative"})
		}
	}

	if c.StartWaitTimeoutMaxSeconds < c.StartWaitTimeoutMinSeconds {
		errs = append(errs, ValidationError{
			Field:   "start_wait_timeout_max_seconds",
			Value:   c.StartWaitTimeoutMaxSeconds,
			Message: fmt.Sprintf("must be >= start_wait_timeout_min_seconds (%v)", c.StartWaitTimeoutMinSeconds),
		})
	}
	if c.PostFinishDelayJitter.Max < c.PostFinishDelayJitter.Min {
		errs = append(errs, ValidationError{
			Field:   "post_finish_delay_jitter.max",
			Value:   c.PostFinishDelayJitter.Max,
			Message: fmt.Sprintf("must be >= post_finish_delay_jitter.min (%v)", c.PostFinishDelayJitter.Min),
		})
	}

	for name, r := range c.Areas {
		if r.X < 0 || r.Y < 0 || r.W < 0 || r.H < 0 {
			errs = append(errs, ValidationError{Field: "areas." + name, Value: r, Message: "must not have negative coordinates"})
		}
	}

	return errs
}
