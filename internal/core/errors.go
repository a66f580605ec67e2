package core

import (
	"errors"
	"fmt"
)

// Error classes. Specific errors below wrap one of them, so callers match with errors.Is.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidState  = errors.New("invalid state")
	ErrBadPayload    = errors.New("bad payload")
	ErrRateLimited   = errors.New("rate limited")
)

var (
	ErrRoomNotFound      = fmt.Errorf("room %w", ErrNotFound)
	ErrFileNotFound      = fmt.Errorf("file %w", ErrNotFound)
	ErrSessionNotFound   = fmt.Errorf("connection %w", ErrNotFound)
	ErrFileExists        = fmt.Errorf("file %w", ErrAlreadyExists)
	ErrAlreadyRegistered = fmt.Errorf("connection %w", ErrAlreadyExists)
	ErrNotJoined         = fmt.Errorf("%w: not joined to a room", ErrInvalidState)
	ErrNotInCall         = fmt.Errorf("%w: not in a call", ErrInvalidState)

	// ErrLastFile is a business-rule rejection: a room always keeps one file.
	ErrLastFile = errors.New("cannot delete last file")
)

// Result is the outcome of one inbound event as reported to the transport layer.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func ResultOf(err error) Result {
	if err != nil {
		return Result{Error: err.Error()}
	}
	return Result{Success: true}
}

// Relayable reports whether a failure should be sent back to the connection that caused it.
// Invalid-state failures are silent no-ops.
func Relayable(err error) bool {
	return err != nil && !errors.Is(err, ErrInvalidState)
}
