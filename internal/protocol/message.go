package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage creates a server-originated message with the current timestamp.
func NewMessage(msgType string, payload interface{}) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Message{
		Type:      msgType,
		Payload:   data,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Client → Server event types.
const (
	TypeCreate = "create"
	TypeInput  = "input"
	TypeResize = "resize"
	TypeKill   = "kill"
	TypeAttach = "attach"
	TypeDetach = "detach"
)

// Server → Client event types.
const (
	TypeCreated  = "created"
	TypeData     = "data"
	TypeExit     = "exit"
	TypeError    = "error"
	TypeFsChange = "fs.change"
)

// ShellKind values accepted in a create payload.
const (
	ShellPosix   = "posix-shell"
	ShellWindows = "windows-shell"
)

// Client → Server payloads.

type CreatePayload struct {
	ShellKind string `json:"shellKind"`
	Cwd       string `json:"cwd,omitempty"`
}

type InputPayload struct {
	ID   string `json:"id"`
	Data string `json:"data"`
}

type ResizePayload struct {
	ID   string `json:"id"`
	Cols uint16 `json:"cols"`
	Rows uint16 `json:"rows"`
}

// SessionIDPayload is shared by kill, attach, and detach.
type SessionIDPayload struct {
	ID string `json:"id"`
}

// Server → Client payloads.

type CreatedPayload struct {
	ID string `json:"id"`
}

type DataPayload struct {
	ID    string `json:"id"`
	Chunk string `json:"chunk"`
}

type ExitPayload struct {
	ID   string `json:"id"`
	Code int    `json:"code"`
}

type ErrorPayload struct {
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason"`
	Code   string `json:"code"`
}

type FsChangePayload struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}
