package config

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/goclaw/sigmux/pkg/logger"
)

// defaultDebounce is how long the config file must stay quiet before
// a change burst triggers one reload.
const defaultDebounce = 500 * time.Millisecond

// Watcher reloads the configuration when the config file changes and
// fans the new Config out to registered callbacks. Reload failures
// keep the previous configuration in effect.
type Watcher struct {
	fsw      *fsnotify.Watcher
	loader   *Loader
	path     string
	debounce time.Duration

	mu       sync.RWMutex
	onReload []func(*Config)

	started  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
}

// WatcherOption adjusts a Watcher at construction time.
type WatcherOption func(*Watcher)

// WithDebounce overrides the quiet period required after a change.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// NewWatcher builds a watcher for configPath. Reloads go through the
// given loader so flag overrides and env vars keep their precedence.
func NewWatcher(configPath string, loader *Loader, opts ...WatcherOption) (*Watcher, error) {
	if configPath == "" {
		return nil, fmt.Errorf("watch config: empty path")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch config: %w", err)
	}

	w := &Watcher{
		fsw:      fsw,
		loader:   loader,
		path:     configPath,
		debounce: defaultDebounce,
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Watch blocks, reloading on file changes, until the context is
// cancelled or Stop is called. Editors that replace the file rather
// than writing in place surface as Create events, so both count.
func (w *Watcher) Watch(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return fmt.Errorf("config watcher already started")
	}
	defer w.started.Store(false)

	if err := w.fsw.Add(w.path); err != nil {
		return fmt.Errorf("watch %s: %w", w.path, err)
	}

	// Trailing-edge debounce: a save burst arms the timer repeatedly
	// and only the final quiet period triggers one reload.
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	armed := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-w.stop:
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
				continue
			}
			if armed && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(w.debounce)
			armed = true

		case <-timer.C:
			armed = false
			w.reload()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := w.loader.Load(w.path, nil)
	if err != nil {
		logger.Warn("Config reload failed, keeping previous configuration",
			"path", w.path,
			"error", err,
		)
		return
	}

	w.mu.RLock()
	callbacks := slices.Clone(w.onReload)
	w.mu.RUnlock()

	// Callbacks run off the watch loop so a slow consumer cannot
	// stall event handling.
	for _, cb := range callbacks {
		go w.notify(cb, cfg)
	}
}

func (w *Watcher) notify(cb func(*Config), cfg *Config) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Config change callback panicked", "panic", r)
		}
	}()
	cb(cfg)
}

// OnChange registers a callback invoked with each successfully
// reloaded Config. Callbacks run concurrently.
func (w *Watcher) OnChange(callback func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReload = append(w.onReload, callback)
}

// Stop ends the watch loop and closes the fsnotify watcher. Safe to
// call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stop)
		err = w.fsw.Close()
	})
	return err
}

// IsRunning reports whether Watch is currently blocked in its loop.
func (w *Watcher) IsRunning() bool {
	return w.started.Load()
}

// ConfigPath returns the watched file path.
func (w *Watcher) ConfigPath() string {
	return w.path
}

// Reloadable is the slice of the configuration the daemon applies
// without a restart.
type Reloadable struct {
	LogLevel   string
	LogFormat  string
	WatchKinds []string
	LogEvery   time.Duration
}

// Reloadable copies the hot-reloadable values out of the Config.
func (c *Config) Reloadable() Reloadable {
	return Reloadable{
		LogLevel:   c.Log.Level,
		LogFormat:  c.Log.Format,
		WatchKinds: slices.Clone(c.Watch.Kinds),
		LogEvery:   c.Watch.LogEvery,
	}
}

// Equal reports whether no hot-reloadable value differs.
func (r Reloadable) Equal(other Reloadable) bool {
	return r.LogLevel == other.LogLevel &&
		r.LogFormat == other.LogFormat &&
		r.LogEvery == other.LogEvery &&
		slices.Equal(r.WatchKinds, other.WatchKinds)
}
