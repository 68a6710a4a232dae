package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"time"

	"chart-recorder/internal/domain"
	"chart-recorder/internal/idhash"
	"chart-recorder/internal/storage"
	"chart-recorder/internal/storage/migrations"
)

// DefaultBatchSize is the number of buffered records per insert batch.
const DefaultBatchSize = 500

// Sink archives event records in batches. Records buffer in memory and
// flush when the batch fills or on Close; the ReplacingMergeTree key makes
// replayed batches converge instead of duplicating.
type Sink struct {
	conn      *Conn
	batchSize int
	buf       []flatEvent
	closed    bool
}

type flatEvent struct {
	key     string
	chart   int32
	time    time.Time
	typ     string
	payload string
}

// NewSink applies the embedded schema and returns a Sink. batchSize <= 0
// selects DefaultBatchSize.
func NewSink(ctx context.Context, conn *Conn, batchSize int) (*Sink, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if err := applySchema(ctx, conn); err != nil {
		return nil, err
	}
	return &Sink{conn: conn, batchSize: batchSize}, nil
}

// Compile-time interface check.
var _ storage.EventSink = (*Sink)(nil)

// Append buffers one record, flushing when the batch is full.
func (s *Sink) Append(ctx context.Context, rec domain.Record) error {
	if s.closed {
		return storage.ErrSinkClosed
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: marshal %s record: %v", storage.ErrInvalidRecord, rec.EventType(), err)
	}

	sec := int64(rec.EventTime())
	nsec := int64((rec.EventTime() - float64(sec)) * 1e9)

	s.buf = append(s.buf, flatEvent{
		key:     idhash.EventKey(line),
		chart:   int32(rec.EventChart()),
		time:    time.Unix(sec, nsec).UTC(),
		typ:     string(rec.EventType()),
		payload: string(line),
	})

	if len(s.buf) >= s.batchSize {
		return s.Flush(ctx)
	}
	return nil
}

// Flush sends all buffered records.
func (s *Sink) Flush(ctx context.Context) error {
	if len(s.buf) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO events (event_key, chart, event_time, event_type, payload)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range s.buf {
		if err := batch.Append(e.key, e.chart, e.time, e.typ, e.payload); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	s.buf = s.buf[:0]
	return nil
}

// Close flushes pending records and closes the connection.
func (s *Sink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	flushErr := s.Flush(context.Background())
	if err := s.conn.Close(); err != nil && flushErr == nil {
		flushErr = err
	}
	return flushErr
}

// applySchema runs the embedded DDL.
func applySchema(ctx context.Context, conn *Conn) error {
	return fs.WalkDir(migrations.ClickhouseFS, "clickhouse", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		ddl, err := fs.ReadFile(migrations.ClickhouseFS, path)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", path, err)
		}
		if err := conn.Exec(ctx, string(ddl)); err != nil {
			return fmt.Errorf("apply migration %s: %w", path, err)
		}
		return nil
	})
}
