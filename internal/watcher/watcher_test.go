package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcher_NotifiesOnChange(t *testing.T) {
	dir := t.TempDir()

	changes := make(chan string, 4)
	w := New(func(sessionID, path string) {
		changes <- sessionID
	}, nil)
	defer w.Shutdown()

	if err := w.Watch("sess-1", dir); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "new.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case id := <-changes:
		if id != "sess-1" {
			t.Errorf("expected sess-1, got %s", id)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification received")
	}
}

func TestWatcher_WatchMissingDir(t *testing.T) {
	w := New(nil, nil)
	defer w.Shutdown()

	if err := w.Watch("sess-1", "/nonexistent/path/xyz"); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestWatcher_UnwatchStopsNotifications(t *testing.T) {
	dir := t.TempDir()

	changes := make(chan string, 4)
	w := New(func(sessionID, path string) {
		changes <- sessionID
	}, nil)
	defer w.Shutdown()

	if err := w.Watch("sess-1", dir); err != nil {
		t.Fatal(err)
	}
	w.Unwatch("sess-1")

	if err := os.WriteFile(filepath.Join(dir, "after.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-changes:
		t.Fatal("received notification after Unwatch")
	case <-time.After(1 * time.Second):
	}
}

func TestWatcher_UnwatchUnknownIsNoop(t *testing.T) {
	w := New(nil, nil)
	defer w.Shutdown()

	w.Unwatch("nonexistent")
	w.Unwatch("nonexistent")
}

func TestWatcher_RewatchReplacesPrevious(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()

	changes := make(chan string, 4)
	w := New(func(sessionID, path string) {
		changes <- path
	}, nil)
	defer w.Shutdown()

	if err := w.Watch("sess-1", dirA); err != nil {
		t.Fatal(err)
	}
	if err := w.Watch("sess-1", dirB); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(dirB, "f.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case path := <-changes:
		if path != dirB {
			t.Errorf("expected change in %s, got %s", dirB, path)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification received")
	}
}
