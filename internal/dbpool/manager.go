// Package dbpool manages pooled connections to external SQL engines, keyed
// by generated connection ids, with absolute-TTL eviction.
package dbpool

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperr "termdeck/internal/errors"
)

const (
	// DefaultTTL is the absolute connection lifetime. The timer is armed at
	// connect and never renewed: a connection in continuous use is still
	// evicted at the one-hour mark.
	DefaultTTL = time.Hour

	defaultMaxRows      = 1000
	defaultQueryTimeout = 30 * time.Second
)

// Config identifies a target database. The password is accepted at connect
// time only and never stored.
type Config struct {
	Type     string `json:"type"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	Username string `json:"username"`
	SSL      bool   `json:"ssl"`
}

// Connection is the stored metadata for one pooled database handle.
type Connection struct {
	ID        string    `json:"id"`
	Config    Config    `json:"config"`
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	LastUsed  time.Time `json:"lastUsed"`
}

// Manager owns all pooled connections. Construct once, pass by reference.
type Manager struct {
	mu    sync.RWMutex
	conns map[string]*pooledConn
	ttl   time.Duration
	log   *slog.Logger
}

type pooledConn struct {
	meta  *Connection
	pool  enginePool
	evict *time.Timer
}

// NewManager creates an empty pool manager with the given absolute TTL
// (DefaultTTL when zero).
func NewManager(ttl time.Duration, log *slog.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		conns: make(map[string]*pooledConn),
		ttl:   ttl,
		log:   log.With("component", "dbpool"),
	}
}

// newConnectionID builds an id of the form {type}_{millis}_{random}.
func newConnectionID(dbType string) string {
	random := strings.SplitN(uuid.New().String(), "-", 2)[0]
	return fmt.Sprintf("%s_%d_%s", dbType, time.Now().UnixMilli(), random)
}

// Connect builds a native pool for the requested engine, validates the
// credentials with a version round trip, and registers the entry. The
// eviction timer starts here and is never extended.
func (m *Manager) Connect(ctx context.Context, cfg Config, password string) (*Connection, error) {
	var (
		pool enginePool
		err  error
	)

	switch cfg.Type {
	case "postgresql":
		pool, err = newPostgresPool(ctx, cfg, password)
	case "mysql":
		pool, err = newMySQLPool(cfg, password)
	default:
		return nil, apperr.NotImplemented("database type " + cfg.Type)
	}
	if err != nil {
		return nil, classify(cfg.Type, err)
	}

	version, err := pool.Version(ctx)
	if err != nil {
		pool.Close()
		return nil, classify(cfg.Type, err)
	}

	now := time.Now().UTC()
	conn := &Connection{
		ID:        newConnectionID(cfg.Type),
		Config:    cfg,
		Version:   version,
		CreatedAt: now,
		LastUsed:  now,
	}

	pc := &pooledConn{meta: conn, pool: pool}
	pc.evict = time.AfterFunc(m.ttl, func() {
		m.log.Info("connection evicted", "id", conn.ID, "age", m.ttl.String())
		m.Disconnect(conn.ID)
	})

	m.mu.Lock()
	m.conns[conn.ID] = pc
	m.mu.Unlock()

	m.log.Info("connection established", "id", conn.ID, "type", cfg.Type,
		"host", cfg.Host, "database", cfg.Database)

	snapshot := *conn
	return &snapshot, nil
}

// Query executes a statement on a pooled connection. Results are truncated
// to maxRows while RowCount reports the full count.
func (m *Manager) Query(ctx context.Context, id, sqlText string, maxRows int, timeout time.Duration) (*QueryResult, error) {
	m.mu.RLock()
	pc, ok := m.conns[id]
	m.mu.RUnlock()

	if !ok {
		return nil, apperr.NotFound("connection", id)
	}

	if maxRows <= 0 {
		maxRows = defaultMaxRows
	}
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	m.mu.Lock()
	pc.meta.LastUsed = time.Now().UTC()
	m.mu.Unlock()

	start := time.Now()
	res, err := pc.pool.Query(ctx, sqlText, maxRows)
	if err != nil {
		return nil, classify(pc.meta.Config.Type, err)
	}
	res.ExecutionTimeMs = time.Since(start).Milliseconds()
	return res, nil
}

// Get returns a snapshot of connection metadata by id. Copies keep callers
// from racing against LastUsed updates on the live record.
func (m *Manager) Get(id string) (*Connection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pc, ok := m.conns[id]
	if !ok {
		return nil, apperr.NotFound("connection", id)
	}
	snapshot := *pc.meta
	return &snapshot, nil
}

// Disconnect ends the pool and removes the entry. Disconnecting an unknown
// id is a no-op.
func (m *Manager) Disconnect(id string) {
	m.mu.Lock()
	pc, ok := m.conns[id]
	if ok {
		delete(m.conns, id)
	}
	m.mu.Unlock()

	if !ok {
		return
	}

	pc.evict.Stop()
	pc.pool.Close()
	m.log.Info("connection closed", "id", id)
}

// List returns metadata snapshots for all live connections. Passwords are
// never stored, so none can appear here.
func (m *Manager) List() []*Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Connection, 0, len(m.conns))
	for _, pc := range m.conns {
		snapshot := *pc.meta
		result = append(result, &snapshot)
	}
	return result
}

// Count returns the number of live connections.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// Shutdown drains all connections.
func (m *Manager) Shutdown() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.conns))
	for id := range m.conns {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		m.Disconnect(id)
	}
}
