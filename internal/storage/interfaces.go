// Package storage defines the event sink abstraction the orchestrator
// writes through, plus shared sink errors. Concrete sinks live in the
// subpackages: jsonl (primary daily streams), memory (tests), postgres and
// clickhouse (mirrors).
package storage

import (
	"context"

	"chart-recorder/internal/domain"
)

// EventSink persists event records. Appends for one (chart, calendar day)
// are ordered as presented; each appended record is a complete,
// independently parseable unit.
type EventSink interface {
	// Append persists one record. Returns ErrDuplicateEvent when the sink
	// has already stored an identical record, ErrSinkClosed after Close.
	Append(ctx context.Context, rec domain.Record) error

	// Close flushes and releases the sink's resources.
	Close() error
}
