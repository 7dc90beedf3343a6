package dbpool

import (
	"context"
	"strings"
	"testing"
	"time"

	apperr "termdeck/internal/errors"
)

func TestNewConnectionID_Format(t *testing.T) {
	id := newConnectionID("postgresql")

	if !strings.HasPrefix(id, "postgresql_") {
		t.Errorf("expected postgresql_ prefix, got %s", id)
	}
	parts := strings.Split(id, "_")
	if len(parts) != 3 {
		t.Fatalf("expected {type}_{timestamp}_{random}, got %s", id)
	}
	if parts[1] == "" || parts[2] == "" {
		t.Errorf("empty timestamp or random segment: %s", id)
	}
}

func TestNewConnectionID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := newConnectionID("mysql")
		if seen[id] {
			t.Fatalf("duplicate connection id: %s", id)
		}
		seen[id] = true
	}
}

func TestConnect_UnsupportedEngines(t *testing.T) {
	m := NewManager(0, nil)

	for _, engine := range []string{"oracle", "sybase", "mongodb"} {
		_, err := m.Connect(context.Background(), Config{Type: engine, Host: "localhost"}, "pw")
		if err == nil {
			t.Fatalf("expected error for engine %s", engine)
		}
		if apperr.CodeOf(err) != apperr.CodeNotImplemented {
			t.Errorf("engine %s: expected code %s, got %s",
				engine, apperr.CodeNotImplemented, apperr.CodeOf(err))
		}
	}
}

func TestQuery_UnknownConnection(t *testing.T) {
	m := NewManager(0, nil)

	_, err := m.Query(context.Background(), "postgresql_123_dead", "SELECT 1", 0, 0)
	if apperr.CodeOf(err) != apperr.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestGet_UnknownConnection(t *testing.T) {
	m := NewManager(0, nil)

	if _, err := m.Get("nope"); apperr.CodeOf(err) != apperr.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestDisconnect_UnknownIsNoop(t *testing.T) {
	m := NewManager(0, nil)
	// Must not panic; disconnecting twice is one teardown and one no-op.
	m.Disconnect("postgresql_123_dead")
	m.Disconnect("postgresql_123_dead")
}

func TestList_Empty(t *testing.T) {
	m := NewManager(0, nil)
	if got := len(m.List()); got != 0 {
		t.Errorf("expected no connections, got %d", got)
	}
	if m.Count() != 0 {
		t.Errorf("expected count 0, got %d", m.Count())
	}
}

func TestGetAndList_ReturnSnapshots(t *testing.T) {
	m := NewManager(0, nil)
	m.conns["mysql_1_abcd"] = &pooledConn{meta: &Connection{
		ID:     "mysql_1_abcd",
		Config: Config{Type: "mysql", Host: "localhost"},
	}}

	got, err := m.Get("mysql_1_abcd")
	if err != nil {
		t.Fatal(err)
	}
	got.Version = "mutated"
	if m.conns["mysql_1_abcd"].meta.Version != "" {
		t.Error("mutating a Get result must not affect the stored record")
	}

	list := m.List()
	if len(list) != 1 {
		t.Fatalf("expected 1 connection, got %d", len(list))
	}
	list[0].LastUsed = time.Now()
	if !m.conns["mysql_1_abcd"].meta.LastUsed.IsZero() {
		t.Error("mutating a List result must not affect the stored record")
	}
}

func TestManager_TTLDefault(t *testing.T) {
	m := NewManager(0, nil)
	if m.ttl != time.Hour {
		t.Errorf("expected 1h default TTL, got %v", m.ttl)
	}
}

func TestRowCollector_TruncatesHonestly(t *testing.T) {
	c := newRowCollector([]string{"n"}, 1000)
	for i := 0; i < 1500; i++ {
		c.add([]interface{}{i})
	}

	res := c.result()
	if res.RowCount != 1500 {
		t.Errorf("expected rowCount 1500, got %d", res.RowCount)
	}
	if len(res.Rows) != 1000 {
		t.Errorf("expected 1000 rows returned, got %d", len(res.Rows))
	}
	if !res.HasMoreRows {
		t.Error("expected hasMoreRows true")
	}
}

func TestRowCollector_NoTruncation(t *testing.T) {
	c := newRowCollector([]string{"a", "b"}, 1000)
	c.add([]interface{}{1, "x"})
	c.add([]interface{}{2, "y"})

	res := c.result()
	if res.RowCount != 2 || len(res.Rows) != 2 {
		t.Errorf("expected 2/2, got %d/%d", res.RowCount, len(res.Rows))
	}
	if res.HasMoreRows {
		t.Error("expected hasMoreRows false")
	}
	if res.Rows[0]["a"] != 1 || res.Rows[1]["b"] != "y" {
		t.Errorf("unexpected row shape: %+v", res.Rows)
	}
}

func TestRowCollector_EmptyResult(t *testing.T) {
	c := newRowCollector([]string{"a"}, 10)
	res := c.result()

	if res.Rows == nil {
		t.Error("rows must be an empty slice, not nil")
	}
	if res.RowCount != 0 || res.HasMoreRows {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestNormalizeValue_Bytes(t *testing.T) {
	if got := normalizeValue([]byte("hello")); got != "hello" {
		t.Errorf("expected byte slices converted to strings, got %v", got)
	}
	if got := normalizeValue(42); got != 42 {
		t.Errorf("expected non-bytes passed through, got %v", got)
	}
}
