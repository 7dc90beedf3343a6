// Package errors provides the coded error taxonomy shared by the gateway,
// the session registry, and the database pool manager.
package errors

import (
	"errors"
	"fmt"
)

// Code identifies an error category with a stable wire representation.
type Code string

const (
	CodeNotFound       Code = "NOT_FOUND"
	CodeSpawnFailed    Code = "SPAWN_FAILED"
	CodeTimeout        Code = "TIMEOUT"
	CodeConnection     Code = "CONNECTION_FAILED"
	CodeNotImplemented Code = "NOT_IMPLEMENTED"
	CodeInvalidMessage Code = "INVALID_MESSAGE"
	CodeInternal       Code = "INTERNAL_ERROR"
)

// Error is the standardized error type for the application.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Cause   error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap allows errors.Is and errors.As to reach the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetails returns a copy of e carrying a human-readable hint.
func (e *Error) WithDetails(details string) *Error {
	clone := *e
	clone.Details = details
	return &clone
}

// NotFound reports that an id has no live mapping.
func NotFound(kind, id string) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("%s not found: %s", kind, id)}
}

// SpawnFailed reports that the OS could not start a process.
func SpawnFailed(what string, cause error) *Error {
	return &Error{Code: CodeSpawnFailed, Message: fmt.Sprintf("failed to start %s", what), Cause: cause}
}

// Timeout reports that a one-shot command exceeded its bound.
func Timeout(command string, ms int64) *Error {
	return &Error{Code: CodeTimeout, Message: fmt.Sprintf("command timed out after %dms", ms), Details: command}
}

// Connection reports a database connection or query failure.
func Connection(message string, cause error) *Error {
	return &Error{Code: CodeConnection, Message: message, Cause: cause}
}

// NotImplemented reports a request for an unsupported engine or feature.
func NotImplemented(what string) *Error {
	return &Error{Code: CodeNotImplemented, Message: fmt.Sprintf("%s is not supported", what)}
}

// InvalidMessage reports a malformed client message or request body.
func InvalidMessage(reason string) *Error {
	return &Error{Code: CodeInvalidMessage, Message: reason}
}

// CodeOf extracts the Code from err, or CodeInternal for foreign errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// DetailsOf extracts the hint string from err, if any.
func DetailsOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return ""
}
