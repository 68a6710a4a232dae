package storage

import "errors"

// Sink errors.
var (
	// ErrDuplicateEvent is returned when an identical record was already
	// stored. The daily streams are append-only; duplicates are rejected,
	// never overwritten.
	ErrDuplicateEvent = errors.New("duplicate event: stream is append-only")

	// ErrSinkClosed is returned for appends after Close.
	ErrSinkClosed = errors.New("sink is closed")

	// ErrInvalidRecord is returned when a record fails validation.
	ErrInvalidRecord = errors.New("invalid record")
)
