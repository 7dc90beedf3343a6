package session

import "time"

// Kind selects which platform shell backs a session.
type Kind string

const (
	KindPosix   Kind = "posix-shell"
	KindWindows Kind = "windows-shell"
)

// Session holds metadata for a single live interactive shell.
type Session struct {
	ID           string    `json:"id"`
	Kind         Kind      `json:"shellKind"`
	Cwd          string    `json:"cwd"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
	Visible      bool      `json:"isVisible"`
}

// EventKind distinguishes output chunks from process exit.
type EventKind string

const (
	EventData EventKind = "data"
	EventExit EventKind = "exit"
)

// OutputEvent is a single chunk of PTY output or the final exit notice.
type OutputEvent struct {
	SessionID string    `json:"sessionId"`
	Kind      EventKind `json:"kind"`
	Chunk     string    `json:"chunk,omitempty"`
	ExitCode  int       `json:"exitCode,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
