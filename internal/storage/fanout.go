package storage

import (
	"context"
	"log"

	"chart-recorder/internal/domain"
)

// NamedSink pairs a sink with a name for diagnostics.
type NamedSink struct {
	Name string
	Sink EventSink
}

// Fanout forwards each record to every attached sink. A failing sink drops
// that record with a diagnostic and does not block the update pass or the
// other sinks; an unavailable mirror must never stall the host callback.
type Fanout struct {
	sinks  []NamedSink
	logger *log.Logger
	onDrop func(sink string)
}

// NewFanout builds a fanout over the given sinks. onDrop, if non-nil, is
// invoked once per dropped (sink, record) pair.
func NewFanout(logger *log.Logger, onDrop func(sink string), sinks ...NamedSink) *Fanout {
	return &Fanout{sinks: sinks, logger: logger, onDrop: onDrop}
}

// Compile-time interface check.
var _ EventSink = (*Fanout)(nil)

// Append forwards the record to all sinks. Always returns nil: per-sink
// failures are recoverable and handled here.
func (f *Fanout) Append(ctx context.Context, rec domain.Record) error {
	for _, s := range f.sinks {
		if err := s.Sink.Append(ctx, rec); err != nil {
			if f.logger != nil {
				f.logger.Printf("sink %s: dropped %s record for chart %d: %v",
					s.Name, rec.EventType(), rec.EventChart(), err)
			}
			if f.onDrop != nil {
				f.onDrop(s.Name)
			}
		}
	}
	return nil
}

// Close closes every sink, returning the first error.
func (f *Fanout) Close() error {
	var first error
	for _, s := range f.sinks {
		if err := s.Sink.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
