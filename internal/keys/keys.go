// Package keys sends key presses to the focused game window.
// The real implementation shells out to xdotool; the fake records presses.
package keys

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Presser presses a single named key.
type Presser interface {
	Press(key string) error
}

// DefaultTimeout bounds a single xdotool invocation.
const DefaultTimeout = 2 * time.Second

// Xdotool presses keys with `xdotool key`.
type Xdotool struct {
	// Path is the xdotool binary.
	Path    string
	Timeout time.Duration

	// command builds the process; replaced in tests.
	command func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewXdotool locates xdotool on PATH.
func NewXdotool() (*Xdotool, error) {
	path, err := exec.LookPath("xdotool")
	if err != nil {
		return nil, fmt.Errorf("find xdotool: %w", err)
	}
	return &Xdotool{Path: path, Timeout: DefaultTimeout, command: exec.CommandContext}, nil
}

// Press sends one key press and release.
func (x *Xdotool) Press(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("press: empty key")
	}

	timeout := x.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	command := x.command
	if command == nil {
		command = exec.CommandContext
	}
	out, err := command(ctx, x.Path, "key", "--clearmodifiers", key).CombinedOutput()
	if err != nil {
		return fmt.Errorf("press %q: %w (%s)", key, err, strings.TrimSpace(string(out)))
	}
	return nil
}
