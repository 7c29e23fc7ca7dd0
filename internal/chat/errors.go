package chat

import "errors"

var (
	// ErrPersist wraps every durable storage failure. The in-memory log
	// stays authoritative when it occurs.
	ErrPersist = errors.New("chat persistence failed")

	ErrMessageTooLong = errors.New("chat message too long")
	ErrEmptyMessage   = errors.New("chat message is empty")
)
