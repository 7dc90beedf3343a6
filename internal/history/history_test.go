package history

import (
	"testing"
	"time"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_EmptyRecent(t *testing.T) {
	s := openStore(t)

	entries, err := s.Recent(10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no entries, got %d", len(entries))
	}
}

func TestStore_AppendAndRecent(t *testing.T) {
	s := openStore(t)

	commands := []string{"ls -la", "git status", "make build"}
	for _, cmd := range commands {
		if err := s.Append(cmd, "/tmp", 0, 15*time.Millisecond); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	entries, err := s.Recent(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	// Newest first.
	if entries[0].Command != "make build" {
		t.Errorf("expected newest entry first, got %q", entries[0].Command)
	}
	if entries[2].Command != "ls -la" {
		t.Errorf("expected oldest entry last, got %q", entries[2].Command)
	}
}

func TestStore_RecentLimit(t *testing.T) {
	s := openStore(t)

	for i := 0; i < 5; i++ {
		if err := s.Append("cmd", "/tmp", 0, time.Millisecond); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := s.Recent(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries, got %d", len(entries))
	}
}

func TestStore_RecordsExitCode(t *testing.T) {
	s := openStore(t)

	if err := s.Append("false", "/tmp", 1, time.Millisecond); err != nil {
		t.Fatal(err)
	}

	entries, err := s.Recent(1)
	if err != nil {
		t.Fatal(err)
	}
	if entries[0].ExitCode != 1 {
		t.Errorf("expected exit code 1, got %d", entries[0].ExitCode)
	}
	if entries[0].Cwd != "/tmp" {
		t.Errorf("expected cwd /tmp, got %s", entries[0].Cwd)
	}
}
