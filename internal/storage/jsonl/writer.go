// Package jsonl implements the primary output: one append-only,
// line-delimited UTF-8 stream per (chart, calendar day), named
// chart_<n>_<yyyymmdd>.jsonl. Each line is one self-contained record, so a
// reader can resume after a partial log without the whole file.
package jsonl

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"chart-recorder/internal/domain"
	"chart-recorder/internal/storage"
)

// Writer appends records to per-chart daily files. Day rollover is driven
// by the record timestamp, not the wall clock: a record always lands in
// the file for its own calendar day, even across a midnight boundary.
type Writer struct {
	dir    string
	open   map[int]*dayFile
	logger *log.Logger
	closed bool

	// OnRollover, if set, is invoked once per daily rollover.
	OnRollover func()
}

type dayFile struct {
	f   *os.File
	day string
}

// NewWriter creates the output directory if needed and returns a Writer.
func NewWriter(dir string, logger *log.Logger) (*Writer, error) {
	if dir == "" {
		dir = "data"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Writer{dir: dir, open: make(map[int]*dayFile), logger: logger}, nil
}

// Compile-time interface check.
var _ storage.EventSink = (*Writer)(nil)

// Filename returns the daily file path for a chart and day tag.
func Filename(dir string, chart int, day string) string {
	return filepath.Join(dir, fmt.Sprintf("chart_%d_%s.jsonl", chart, day))
}

// Append serializes the record and appends it to the chart's stream for
// the record's calendar day.
func (w *Writer) Append(_ context.Context, rec domain.Record) error {
	if w.closed {
		return storage.ErrSinkClosed
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal %s record: %w", rec.EventType(), err)
	}

	chart := rec.EventChart()
	day := dayTag(rec.EventTime())

	df := w.open[chart]
	if df == nil || df.day != day {
		if df != nil {
			if err := df.f.Close(); err != nil && w.logger != nil {
				w.logger.Printf("close chart %d stream for %s: %v", chart, df.day, err)
			}
			if w.logger != nil {
				w.logger.Printf("chart %d: rolled over %s -> %s", chart, df.day, day)
			}
			if w.OnRollover != nil {
				w.OnRollover()
			}
		}
		f, err := os.OpenFile(Filename(w.dir, chart, day), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			delete(w.open, chart)
			return fmt.Errorf("open daily stream: %w", err)
		}
		df = &dayFile{f: f, day: day}
		w.open[chart] = df
	}

	if _, err := df.f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append to daily stream: %w", err)
	}
	return nil
}

// Close closes all open daily streams.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	var first error
	for chart, df := range w.open {
		if err := df.f.Close(); err != nil && first == nil {
			first = err
		}
		delete(w.open, chart)
	}
	return first
}

// dayTag formats the calendar day of a Unix-seconds timestamp as yyyymmdd
// in UTC.
func dayTag(t float64) string {
	sec := int64(t)
	nsec := int64((t - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC().Format("20060102")
}
