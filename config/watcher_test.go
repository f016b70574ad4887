package config

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"
	"testing"
	"time"
)

const testDebounce = 50 * time.Millisecond

// startWatcher runs Watch in the background and waits until the loop
// reports running, so tests never race the startup.
func startWatcher(t *testing.T, w *Watcher) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Watch(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("watch loop did not exit")
		}
	})

	deadline := time.Now().Add(time.Second)
	for !w.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("watch loop never started")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cancel
}

// awaitReload polls until at least want reloads have been observed.
func awaitReload(t *testing.T, counter *atomic.Int32, want int32) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for counter.Load() < want {
		if time.Now().After(deadline) {
			t.Fatalf("saw %d reloads, want %d", counter.Load(), want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestNewWatcher(t *testing.T) {
	path := writeTempConfig(t, "config.yaml", "app:\n  name: w\n")

	w, err := NewWatcher(path, NewLoader())
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Stop()

	if w.ConfigPath() != path {
		t.Errorf("ConfigPath() = %q, want %q", w.ConfigPath(), path)
	}
	if w.IsRunning() {
		t.Error("watcher must not run before Watch is called")
	}

	if _, err := NewWatcher("", NewLoader()); err == nil {
		t.Error("empty path must be rejected")
	}
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := writeTempConfig(t, "config.yaml", "app:\n  name: before\n")
	w, err := NewWatcher(path, NewLoader(), WithDebounce(testDebounce))
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Stop()

	var reloads atomic.Int32
	var lastName atomic.Value
	w.OnChange(func(cfg *Config) {
		lastName.Store(cfg.App.Name)
		reloads.Add(1)
	})

	startWatcher(t, w)

	if err := os.WriteFile(path, []byte("app:\n  name: after\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	awaitReload(t, &reloads, 1)
	if got := lastName.Load(); got != "after" {
		t.Errorf("callback saw app.name %v, want after", got)
	}
}

func TestWatcherCoalescesBursts(t *testing.T) {
	path := writeTempConfig(t, "config.yaml", "app:\n  name: burst\n")
	w, err := NewWatcher(path, NewLoader(), WithDebounce(150*time.Millisecond))
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Stop()

	var reloads atomic.Int32
	w.OnChange(func(*Config) { reloads.Add(1) })
	startWatcher(t, w)

	// A burst of writes inside one debounce window collapses into a
	// single reload once the file goes quiet.
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("app:\n  name: burst\nserver:\n  port: 9000\n"), 0o644); err != nil {
			t.Fatalf("rewrite config: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	awaitReload(t, &reloads, 1)
	time.Sleep(400 * time.Millisecond)
	if got := reloads.Load(); got != 1 {
		t.Errorf("burst produced %d reloads, want 1", got)
	}
}

func TestWatcherKeepsConfigOnBadReload(t *testing.T) {
	path := writeTempConfig(t, "config.yaml", "app:\n  name: good\n")
	w, err := NewWatcher(path, NewLoader(), WithDebounce(testDebounce))
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Stop()

	var reloads atomic.Int32
	w.OnChange(func(*Config) { reloads.Add(1) })
	startWatcher(t, w)

	// Invalid content must not reach callbacks.
	if err := os.WriteFile(path, []byte("app: [unclosed"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	time.Sleep(4 * testDebounce)
	if got := reloads.Load(); got != 0 {
		t.Fatalf("bad config produced %d callback runs, want 0", got)
	}

	// A later valid write still reloads.
	if err := os.WriteFile(path, []byte("app:\n  name: recovered\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	awaitReload(t, &reloads, 1)
}

func TestWatcherCallbackPanicIsContained(t *testing.T) {
	path := writeTempConfig(t, "config.yaml", "app:\n  name: p\n")
	w, err := NewWatcher(path, NewLoader(), WithDebounce(testDebounce))
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Stop()

	var survived atomic.Int32
	w.OnChange(func(*Config) { panic("callback exploded") })
	w.OnChange(func(*Config) { survived.Add(1) })
	startWatcher(t, w)

	if err := os.WriteFile(path, []byte("app:\n  name: q\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	awaitReload(t, &survived, 1)
}

func TestWatcherDoubleWatchRejected(t *testing.T) {
	path := writeTempConfig(t, "config.yaml", "app:\n  name: d\n")
	w, err := NewWatcher(path, NewLoader(), WithDebounce(testDebounce))
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Stop()

	startWatcher(t, w)
	if err := w.Watch(context.Background()); err == nil {
		t.Fatal("second Watch call must fail while the first runs")
	}
}

func TestWatcherStop(t *testing.T) {
	path := writeTempConfig(t, "config.yaml", "app:\n  name: s\n")
	w, err := NewWatcher(path, NewLoader(), WithDebounce(testDebounce))
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- w.Watch(context.Background()) }()

	deadline := time.Now().Add(time.Second)
	for !w.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("watch loop never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := w.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned %v after Stop, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after Stop")
	}

	if w.IsRunning() {
		t.Error("watcher still reports running after Stop")
	}

	// Stop must be idempotent.
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop returned %v", err)
	}
}

func TestWatchMissingFileFails(t *testing.T) {
	w, err := NewWatcher(filepath.Join(t.TempDir(), "absent.yaml"), NewLoader())
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.Watch(ctx); err == nil {
		t.Fatal("watching a missing file must fail")
	}
	if w.IsRunning() {
		t.Error("failed Watch left running set")
	}
}

func TestReloadableValues(t *testing.T) {
	cfg := DefaultConfig()
	hot := cfg.Reloadable()

	if hot.LogLevel != cfg.Log.Level || hot.LogFormat != cfg.Log.Format {
		t.Errorf("log values not extracted: %+v", hot)
	}
	if !slices.Equal(hot.WatchKinds, cfg.Watch.Kinds) {
		t.Errorf("kinds not extracted: %v", hot.WatchKinds)
	}

	// The extracted kinds are a copy, not an alias.
	cfg.Watch.Kinds[0] = "mutated"
	if hot.WatchKinds[0] == "mutated" {
		t.Error("Reloadable aliased the kinds slice")
	}

	same := Reloadable{LogLevel: "info", LogFormat: "json", WatchKinds: []string{"interrupt"}}
	if !same.Equal(Reloadable{LogLevel: "info", LogFormat: "json", WatchKinds: []string{"interrupt"}}) {
		t.Error("identical values reported unequal")
	}

	for name, other := range map[string]Reloadable{
		"level":  {LogLevel: "debug", LogFormat: "json", WatchKinds: []string{"interrupt"}},
		"format": {LogLevel: "info", LogFormat: "text", WatchKinds: []string{"interrupt"}},
		"kinds":  {LogLevel: "info", LogFormat: "json", WatchKinds: []string{"terminate"}},
		"every":  {LogLevel: "info", LogFormat: "json", WatchKinds: []string{"interrupt"}, LogEvery: time.Second},
	} {
		if same.Equal(other) {
			t.Errorf("%s difference not detected", name)
		}
	}
}
