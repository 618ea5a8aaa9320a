package config_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/saorsa-labs/fae/internal/config"
)

const watcherValidTOML = `
log_level = "info"

[conversation]
wake_phrase = "hey fae"
stop_phrase = "goodbye fae"
`

const watcherUpdatedTOML = `
log_level = "debug"

[conversation]
wake_phrase = "hey fae"
stop_phrase = "goodbye fae"
`

const watcherInvalidTOML = `
log_level = "bananas"
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file %q: %v", path, err)
	}
}

func TestWatcher_InitialLoad(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "fae.toml")
	writeFile(t, cfgPath, watcherValidTOML)

	w, err := config.NewWatcher(cfgPath, nil, config.WithInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Stop()

	cfg := w.Current()
	if cfg == nil {
		t.Fatal("Current() returned nil after initial load")
	}
	if cfg.LogLevel != config.LogInfo {
		t.Errorf("log_level: got %q, want %q", cfg.LogLevel, config.LogInfo)
	}
}

func TestWatcher_DetectsChange(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "fae.toml")
	writeFile(t, cfgPath, watcherValidTOML)

	var mu sync.Mutex
	var callbackOld, callbackNew *config.Config
	called := make(chan struct{}, 1)

	w, err := config.NewWatcher(cfgPath, func(old, new *config.Config) {
		mu.Lock()
		callbackOld = old
		callbackNew = new
		mu.Unlock()
		select {
		case called <- struct{}{}:
		default:
		}
	}, config.WithInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Stop()

	// Give the initial poll a moment, then update the file.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, cfgPath, watcherUpdatedTOML)

	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("callback was not invoked within timeout")
	}

	mu.Lock()
	defer mu.Unlock()

	if callbackOld == nil || callbackNew == nil {
		t.Fatal("callback received nil configs")
	}
	if callbackOld.LogLevel != config.LogInfo {
		t.Errorf("old log_level: got %q, want %q", callbackOld.LogLevel, config.LogInfo)
	}
	if callbackNew.LogLevel != config.LogDebug {
		t.Errorf("new log_level: got %q, want %q", callbackNew.LogLevel, config.LogDebug)
	}
}

func TestWatcher_KeepsOldConfigOnInvalidUpdate(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "fae.toml")
	writeFile(t, cfgPath, watcherValidTOML)

	called := make(chan struct{}, 1)
	w, err := config.NewWatcher(cfgPath, func(old, new *config.Config) {
		select {
		case called <- struct{}{}:
		default:
		}
	}, config.WithInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Stop()

	time.Sleep(100 * time.Millisecond)
	writeFile(t, cfgPath, watcherInvalidTOML)

	select {
	case <-called:
		t.Fatal("callback should not fire for an invalid config")
	case <-time.After(300 * time.Millisecond):
	}

	if got := w.Current().LogLevel; got != config.LogInfo {
		t.Errorf("Current() after invalid update = %q, want previous %q", got, config.LogInfo)
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "fae.toml")
	writeFile(t, cfgPath, watcherValidTOML)

	w, err := config.NewWatcher(cfgPath, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	w.Stop()
	w.Stop()
}
