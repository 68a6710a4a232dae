// Package memory provides an in-memory event sink for tests.
package memory

import (
	"context"
	"sync"

	"chart-recorder/internal/domain"
	"chart-recorder/internal/storage"
)

// Sink stores appended records in order.
type Sink struct {
	mu     sync.Mutex
	recs   []domain.Record
	closed bool
}

// NewSink creates an empty in-memory sink.
func NewSink() *Sink {
	return &Sink{}
}

// Compile-time interface check.
var _ storage.EventSink = (*Sink)(nil)

// Append stores the record.
func (s *Sink) Append(_ context.Context, rec domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrSinkClosed
	}
	s.recs = append(s.recs, rec)
	return nil
}

// Close marks the sink closed.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Records returns a snapshot of all stored records in append order.
func (s *Sink) Records() []domain.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Record, len(s.recs))
	copy(out, s.recs)
	return out
}

// OfKind returns stored records with the given stream type, in order.
func (s *Sink) OfKind(kind domain.StreamKind) []domain.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Record
	for _, r := range s.recs {
		if r.EventType() == kind {
			out = append(out, r)
		}
	}
	return out
}

// Reset discards all stored records.
func (s *Sink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = nil
}
