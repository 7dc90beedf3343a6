package session

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/creack/pty"
	"github.com/google/uuid"

	apperr "termdeck/internal/errors"
)

const (
	readBufSize       = 4096
	subscriberBufCap  = 256
	defaultKillWindow = 5 * time.Second
)

// Registry is the single source of truth for live shell sessions. All
// mutation goes through Create/Write/Resize/Remove; the backing map is
// never touched directly by callers.
type Registry struct {
	mu          sync.RWMutex
	sessions    map[string]*managedSession
	maxSessions int
	log         *slog.Logger

	// exitHook, when set, runs after a session's entry is removed,
	// whether by natural exit or explicit Remove.
	exitHook func(id string)
}

type managedSession struct {
	sess *Session
	cmd  *exec.Cmd
	ptmx *os.File

	// writeMu serializes stdin writes so concurrent input events for the
	// same session never interleave.
	writeMu sync.Mutex

	subMu       sync.RWMutex
	subscribers map[string]chan OutputEvent
	closeSubs   sync.Once

	readDone chan struct{}
	procDone chan struct{}
}

// NewRegistry creates an empty registry. maxSessions bounds the number of
// concurrently live shells.
func NewRegistry(maxSessions int, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		sessions:    make(map[string]*managedSession),
		maxSessions: maxSessions,
		log:         log.With("component", "session"),
	}
}

// SetExitHook registers a cleanup callback invoked once per session after
// its registry entry is gone. Must be called before any Create.
func (r *Registry) SetExitHook(hook func(id string)) {
	r.exitHook = hook
}

// shellCommand resolves the executable for a shell kind.
func shellCommand(kind Kind) (string, []string, error) {
	switch kind {
	case KindPosix:
		if path, err := exec.LookPath("bash"); err == nil {
			return path, nil, nil
		}
		path, err := exec.LookPath("sh")
		if err != nil {
			return "", nil, fmt.Errorf("no posix shell in PATH")
		}
		return path, nil, nil
	case KindWindows:
		path, err := exec.LookPath("cmd.exe")
		if err != nil {
			return "", nil, fmt.Errorf("cmd.exe not found in PATH")
		}
		return path, nil, nil
	default:
		return "", nil, fmt.Errorf("unknown shell kind: %s", kind)
	}
}

// Create spawns a new interactive shell on a PTY in the given working
// directory and registers it under a fresh id.
func (r *Registry) Create(kind Kind, cwd string) (*Session, error) {
	if cwd == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cwd = home
		} else {
			cwd, _ = os.Getwd()
		}
	}

	info, err := os.Stat(cwd)
	if err != nil {
		return nil, apperr.SpawnFailed("shell", fmt.Errorf("working directory does not exist: %s", cwd))
	}
	if !info.IsDir() {
		return nil, apperr.SpawnFailed("shell", fmt.Errorf("path is not a directory: %s", cwd))
	}

	r.mu.Lock()
	if len(r.sessions) >= r.maxSessions {
		r.mu.Unlock()
		return nil, apperr.SpawnFailed("shell", fmt.Errorf("maximum session limit reached (%d)", r.maxSessions))
	}
	r.mu.Unlock()

	binary, args, err := shellCommand(kind)
	if err != nil {
		return nil, apperr.SpawnFailed("shell", err)
	}

	cmd := exec.Command(binary, args...)
	cmd.Dir = cwd
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return nil, apperr.SpawnFailed(binary, err)
	}

	now := time.Now().UTC()
	sess := &Session{
		ID:           uuid.New().String(),
		Kind:         kind,
		Cwd:          cwd,
		CreatedAt:    now,
		LastActiveAt: now,
	}

	ms := &managedSession{
		sess:        sess,
		cmd:         cmd,
		ptmx:        ptmx,
		subscribers: make(map[string]chan OutputEvent),
		readDone:    make(chan struct{}),
		procDone:    make(chan struct{}),
	}

	// Re-check the limit under the insert lock: concurrent Creates may all
	// have passed the early check before any of them registered.
	r.mu.Lock()
	if len(r.sessions) >= r.maxSessions {
		r.mu.Unlock()
		ptmx.Close()
		cmd.Process.Kill()
		go cmd.Wait()
		return nil, apperr.SpawnFailed("shell", fmt.Errorf("maximum session limit reached (%d)", r.maxSessions))
	}
	r.sessions[sess.ID] = ms
	r.mu.Unlock()

	go r.readLoop(ms)
	go r.waitForExit(ms)

	r.log.Info("session created", "id", sess.ID, "kind", string(kind), "cwd", cwd)

	snapshot := *sess
	return &snapshot, nil
}

// readLoop pumps PTY output chunks to subscribers until the PTY closes.
func (r *Registry) readLoop(ms *managedSession) {
	defer close(ms.readDone)

	buf := make([]byte, readBufSize)
	for {
		n, err := ms.ptmx.Read(buf)
		if n > 0 {
			r.touch(ms)
			ms.fanOut(OutputEvent{
				SessionID: ms.sess.ID,
				Kind:      EventData,
				Chunk:     string(buf[:n]),
				Timestamp: time.Now().UTC(),
			})
		}
		if err != nil {
			// The PTY returns EIO once the child exits.
			return
		}
	}
}

// waitForExit reaps the shell process, emits the exit event once, and
// removes the registry entry.
func (r *Registry) waitForExit(ms *managedSession) {
	err := ms.cmd.Wait()
	close(ms.procDone)

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
	}

	// Drain remaining output before announcing the exit.
	<-ms.readDone
	ms.ptmx.Close()

	ms.fanOut(OutputEvent{
		SessionID: ms.sess.ID,
		Kind:      EventExit,
		ExitCode:  exitCode,
		Timestamp: time.Now().UTC(),
	})

	ms.closeSubscribers()

	r.mu.Lock()
	delete(r.sessions, ms.sess.ID)
	r.mu.Unlock()

	if r.exitHook != nil {
		r.exitHook(ms.sess.ID)
	}

	r.log.Info("session exited", "id", ms.sess.ID, "code", exitCode)
}

func (ms *managedSession) fanOut(event OutputEvent) {
	ms.subMu.RLock()
	defer ms.subMu.RUnlock()

	for _, ch := range ms.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber channel full, drop the event.
		}
	}
}

func (ms *managedSession) closeSubscribers() {
	ms.closeSubs.Do(func() {
		ms.subMu.Lock()
		for id, ch := range ms.subscribers {
			close(ch)
			delete(ms.subscribers, id)
		}
		ms.subMu.Unlock()
	})
}

func (r *Registry) touch(ms *managedSession) {
	r.mu.Lock()
	ms.sess.LastActiveAt = time.Now().UTC()
	r.mu.Unlock()
}

// Get returns a snapshot of a session by id. Copies keep callers from
// racing against LastActiveAt updates on the live record.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ms, ok := r.sessions[id]
	if !ok {
		return nil, apperr.NotFound("session", id)
	}
	snapshot := *ms.sess
	return &snapshot, nil
}

// List returns snapshots of all live sessions.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Session, 0, len(r.sessions))
	for _, ms := range r.sessions {
		snapshot := *ms.sess
		result = append(result, &snapshot)
	}
	return result
}

// Write sends input bytes to a session's shell. Writes for the same id are
// serialized and applied in call order.
func (r *Registry) Write(id string, data []byte) error {
	r.mu.RLock()
	ms, ok := r.sessions[id]
	r.mu.RUnlock()

	if !ok {
		return apperr.NotFound("session", id)
	}

	ms.writeMu.Lock()
	defer ms.writeMu.Unlock()

	r.touch(ms)
	if _, err := ms.ptmx.Write(data); err != nil {
		return fmt.Errorf("write to session %s: %w", id, err)
	}
	return nil
}

// Resize updates the PTY window size for a session.
func (r *Registry) Resize(id string, cols, rows uint16) error {
	r.mu.RLock()
	ms, ok := r.sessions[id]
	r.mu.RUnlock()

	if !ok {
		return apperr.NotFound("session", id)
	}

	r.touch(ms)
	return pty.Setsize(ms.ptmx, &pty.Winsize{Cols: cols, Rows: rows})
}

// SetVisible records whether any client is attached to the session.
func (r *Registry) SetVisible(id string, visible bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ms, ok := r.sessions[id]; ok {
		ms.sess.Visible = visible
	}
}

// Remove terminates a session's shell and deletes the mapping. Removing an
// id that is already gone is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	ms, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	if ms.cmd.Process != nil {
		ms.cmd.Process.Signal(os.Interrupt)

		// Give it a moment to exit, then force kill.
		go func() {
			select {
			case <-ms.procDone:
			case <-time.After(defaultKillWindow):
				ms.cmd.Process.Kill()
			}
		}()
	}
	// Closing the PTY unblocks the read loop; waitForExit finishes cleanup.
	ms.ptmx.Close()

	r.log.Info("session removed", "id", id)
}

// Subscribe registers an output channel for a session. The channel is
// closed when the session ends. No past output is replayed.
func (r *Registry) Subscribe(id string) (string, <-chan OutputEvent, error) {
	r.mu.RLock()
	ms, ok := r.sessions[id]
	r.mu.RUnlock()

	if !ok {
		return "", nil, apperr.NotFound("session", id)
	}

	subID := uuid.New().String()
	ch := make(chan OutputEvent, subscriberBufCap)

	ms.subMu.Lock()
	ms.subscribers[subID] = ch
	ms.subMu.Unlock()

	return subID, ch, nil
}

// Unsubscribe removes a subscriber from a session. Safe to call after the
// session is gone.
func (r *Registry) Unsubscribe(sessionID, subID string) {
	r.mu.RLock()
	ms, ok := r.sessions[sessionID]
	r.mu.RUnlock()

	if !ok {
		return
	}

	ms.subMu.Lock()
	if ch, exists := ms.subscribers[subID]; exists {
		close(ch)
		delete(ms.subscribers, subID)
	}
	ms.subMu.Unlock()
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Shutdown terminates all sessions.
func (r *Registry) Shutdown() {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	for _, id := range ids {
		r.Remove(id)
	}
}
