package protocol

import (
	"encoding/json"
	"fmt"
)

// validClientTypes is the set of allowed client→server event types.
var validClientTypes = map[string]bool{
	TypeCreate: true,
	TypeInput:  true,
	TypeResize: true,
	TypeKill:   true,
	TypeAttach: true,
	TypeDetach: true,
}

// ValidateClientMessage validates a raw JSON message from a client.
// Returns the parsed Message and any validation error.
func ValidateClientMessage(raw []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	if msg.Type == "" {
		return nil, fmt.Errorf("missing 'type' field")
	}

	if !validClientTypes[msg.Type] {
		return nil, fmt.Errorf("unknown event type: %s", msg.Type)
	}

	if msg.Payload == nil {
		return nil, fmt.Errorf("missing 'payload' field")
	}

	// Validate required payload fields per type.
	switch msg.Type {
	case TypeCreate:
		var p CreatePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return nil, fmt.Errorf("invalid payload for %s: %w", msg.Type, err)
		}
		if p.ShellKind != ShellPosix && p.ShellKind != ShellWindows {
			return nil, fmt.Errorf("invalid 'shellKind' in %s payload: %q", msg.Type, p.ShellKind)
		}

	case TypeInput:
		var p InputPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return nil, fmt.Errorf("invalid payload for %s: %w", msg.Type, err)
		}
		if p.ID == "" {
			return nil, fmt.Errorf("missing required field 'id' in %s payload", msg.Type)
		}

	case TypeResize:
		var p ResizePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return nil, fmt.Errorf("invalid payload for %s: %w", msg.Type, err)
		}
		if p.ID == "" {
			return nil, fmt.Errorf("missing required field 'id' in %s payload", msg.Type)
		}
		if p.Cols == 0 || p.Rows == 0 {
			return nil, fmt.Errorf("cols and rows must be positive in %s payload", msg.Type)
		}

	case TypeKill, TypeAttach, TypeDetach:
		var p SessionIDPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return nil, fmt.Errorf("invalid payload for %s: %w", msg.Type, err)
		}
		if p.ID == "" {
			return nil, fmt.Errorf("missing required field 'id' in %s payload", msg.Type)
		}
	}

	return &msg, nil
}

// NewErrorMessage creates an error event ready to send to the client.
func NewErrorMessage(sessionID, code, reason string) (*Message, error) {
	return NewMessage(TypeError, ErrorPayload{
		ID:     sessionID,
		Code:   code,
		Reason: reason,
	})
}
