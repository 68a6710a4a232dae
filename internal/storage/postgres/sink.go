package postgres

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

// Sink mirrors event records into the events table, one row per record.
// The event_key unique constraint makes appends idempotent.
type Sink struct {
	pool *Pool
}

// NewSink applies the embedded schema and returns a Sink.
func NewSink(ctx context.Context, pool *Pool) (*Sink, error) {
	if err := applySchema(ctx, pool); err != nil {
		return nil, err
	}
	return &Sink{pool: pool}, nil
}

// Compile-time interface check.
var _ storage.EventSink = (*Sink)(nil)

// Append inserts one record. Returns storage.ErrDuplicateEvent when an
// identical record was already stored.
func (s *Sink) Append(ctx context.Context, rec domain.Record) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: marshal %s record: %v", storage.ErrInvalidRecord, rec.EventType(), err)
	}

	sec := int64(rec.EventTime())
	nsec := int64((rec.EventTime() - float64(sec)) * 1e9)
	ts := time.Unix(sec, nsec).UTC()

	query := `
		INSERT INTO events (event_key, chart, event_time, event_type, payload)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = s.pool.Exec(ctx, query,
		idhash.EventKey(line),
		rec.EventChart(),
		ts,
		string(rec.EventType()),
		line,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateEvent
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Sink) Close() error {
	s.pool.Close()
	return nil
}

// CountByType returns the number of stored events per type for a chart.
// Used by tests and the inspect tool.
func (s *Sink) CountByType(ctx context.Context, chart int) (map[string]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT event_type, COUNT(*) FROM events WHERE chart = $1 GROUP BY event_type`, chart)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("scan count row: %w", err)
		}
		out[typ] = n
	}
	return out, rows.Err()
}

// applySchema runs the embedded DDL. The statements are idempotent
// (CREATE TABLE IF NOT EXISTS), so startup needs no migration runner.
func applySchema(ctx context.Context, pool *Pool) error {
	err := fs.WalkDir(migrations.PostgresFS, "postgres", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		ddl, err := fs.ReadFile(migrations.PostgresFS, path)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", path, err)
		}
		if _, err := pool.Exec(ctx, string(ddl)); err != nil {
			return fmt.Errorf("apply migration %s: %w", path, err)
		}
		return nil
	})
	return err
}
