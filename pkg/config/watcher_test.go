package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestWatcher_RequiresPath(t *testing.T) {
	if _, err := NewWatcher("", nil); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestWatcher_TriggersReloadOnWrite(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("context: before\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	w, err := NewWatcher(configPath, nil)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}

	reloaded := make(chan struct{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watchErr := make(chan error, 1)
	go func() {
		watchErr <- w.Watch(ctx, func() error {
			select {
			case reloaded <- struct{}{}:
			default:
			}
			return nil
		})
	}()

	// Give the watch loop time to register the directory.
	time.Sleep(200 * time.Millisecond)

	if err := os.WriteFile(configPath, []byte("context: after\n"), 0644); err != nil {
		t.Fatalf("failed to rewrite config file: %v", err)
	}

	select {
	case <-reloaded:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload callback")
	}

	if err := w.Stop(); err != nil {
		t.Fatalf("failed to stop watcher: %v", err)
	}
	if err := <-watchErr; err != nil {
		t.Fatalf("watch returned error: %v", err)
	}
}

func TestWatcher_IgnoresSiblingFiles(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("context: x\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	w, err := NewWatcher(configPath, nil)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}

	var reloads atomic.Int64
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = w.Watch(ctx, func() error {
			reloads.Add(1)
			return nil
		})
	}()

	time.Sleep(200 * time.Millisecond)

	sibling := filepath.Join(tmpDir, "other.yaml")
	if err := os.WriteFile(sibling, []byte("unrelated\n"), 0644); err != nil {
		t.Fatalf("failed to write sibling file: %v", err)
	}

	// Allow any debounced callbacks to fire before checking.
	time.Sleep(500 * time.Millisecond)

	if n := reloads.Load(); n != 0 {
		t.Errorf("expected no reloads for sibling file, got %d", n)
	}

	if err := w.Stop(); err != nil {
		t.Fatalf("failed to stop watcher: %v", err)
	}
}

func TestDebouncer_CollapsesRapidEvents(t *testing.T) {
	d := newDebouncer(100 * time.Millisecond)
	defer d.stop()

	var calls atomic.Int64
	for i := 0; i < 10; i++ {
		d.trigger(func() { calls.Add(1) })
		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(300 * time.Millisecond)

	if n := calls.Load(); n != 1 {
		t.Errorf("expected rapid triggers to collapse to 1 call, got %d", n)
	}
}
