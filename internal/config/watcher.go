package config

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/sweeney/fishing-bot/internal/logic"
)

// Watcher keeps the latest valid Config for a file and reloads it when
// the file changes on disk. A change that fails to decode or validate is
// logged and the previous snapshot stays in effect.
type Watcher struct {
	v   *viper.Viper
	cur atomic.Pointer[Config]

	mu       sync.Mutex // serialises reloads and guards onChange
	onChange func(*Config)
}

// NewWatcher loads path and returns a Watcher holding it. Call Watch to
// start following the file.
func NewWatcher(path string) (*Watcher, error) {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}

	w := &Watcher{v: v}
	w.cur.Store(cfg)
	return w, nil
}

// Watch starts following the file through fsnotify.
func (w *Watcher) Watch() {
	w.v.OnConfigChange(func(e fsnotify.Event) {
		if err := w.apply(); err != nil {
			log.Printf("config: ignoring change to %s: %v", e.Name, err)
			return
		}
		log.Printf("config: reloaded %s", e.Name)
	})
	w.v.WatchConfig()
}

// OnChange registers fn to be called after every successful reload.
func (w *Watcher) OnChange(fn func(*Config)) {
	w.mu.Lock()
	w.onChange = fn
	w.mu.Unlock()
}

// Reload re-reads the file immediately.
func (w *Watcher) Reload() error {
	w.mu.Lock()
	err := w.v.ReadInConfig()
	w.mu.Unlock()
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	return w.apply()
}

func (w *Watcher) apply() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	cfg, err := decode(w.v)
	if err != nil {
		return err
	}
	w.cur.Store(cfg)
	if w.onChange != nil {
		w.onChange(cfg)
	}
	return nil
}

// Current returns the latest valid snapshot. Callers must not modify it.
func (w *Watcher) Current() *Config {
	return w.cur.Load()
}

// Settings implements logic.SettingsSource.
func (w *Watcher) Settings() logic.Settings {
	return w.Current().Settings()
}
