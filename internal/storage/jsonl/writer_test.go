package jsonl

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"testing"

	"chart-recorder/internal/domain"
)

// day1 and day2 are timestamps on consecutive UTC calendar days.
const (
	day1 = 1700000000.0 // 2023-11-14 UTC
	day2 = 1700100000.0 // 2023-11-16 UTC
)

func tradeRec(t float64, chart int, px float64) domain.Trade {
	return domain.Trade{
		Header: domain.Header{T: t, Sym: "ESZ5", Type: domain.StreamTrade, Chart: chart},
		Price:  px,
		Qty:    1,
	}
}

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open %s: %v", path, err)
	}
	defer f.Close()

	var out []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("Line %d is not valid JSON: %v", len(out)+1, err)
		}
		out = append(out, m)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	return out
}

func TestWriter_AppendsParseableLines(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, nil)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()

	ctx := context.Background()
	for i, px := range []float64{6502.00, 6502.25, 6502.50} {
		if err := w.Append(ctx, tradeRec(day1+float64(i), 3, px)); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	lines := readLines(t, Filename(dir, 3, "20231114"))
	if len(lines) != 3 {
		t.Fatalf("Expected 3 lines, got %d", len(lines))
	}
	for i, m := range lines {
		if m["type"] != "trade" || m["chart"] != float64(3) {
			t.Errorf("Line %d: unexpected envelope %v", i, m)
		}
	}
	// Append order is preserved within the stream.
	if lines[0]["px"] != 6502.00 || lines[2]["px"] != 6502.50 {
		t.Errorf("Order not preserved: %v .. %v", lines[0]["px"], lines[2]["px"])
	}
}

func TestWriter_RollsOverByEventTime(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, nil)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()

	ctx := context.Background()
	if err := w.Append(ctx, tradeRec(day1, 3, 6502.00)); err != nil {
		t.Fatalf("Append day1: %v", err)
	}
	if err := w.Append(ctx, tradeRec(day2, 3, 6503.00)); err != nil {
		t.Fatalf("Append day2: %v", err)
	}

	if got := readLines(t, Filename(dir, 3, "20231114")); len(got) != 1 {
		t.Errorf("Expected 1 record in day-1 file, got %d", len(got))
	}
	if got := readLines(t, Filename(dir, 3, "20231116")); len(got) != 1 {
		t.Errorf("Expected 1 record in day-2 file, got %d", len(got))
	}
}

func TestWriter_SeparatesCharts(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, nil)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()

	ctx := context.Background()
	if err := w.Append(ctx, tradeRec(day1, 3, 6502.00)); err != nil {
		t.Fatal(err)
	}
	if err := w.Append(ctx, tradeRec(day1, 4, 18000.00)); err != nil {
		t.Fatal(err)
	}

	if got := readLines(t, Filename(dir, 3, "20231114")); len(got) != 1 {
		t.Errorf("Chart 3: expected 1 record, got %d", len(got))
	}
	if got := readLines(t, Filename(dir, 4, "20231114")); len(got) != 1 {
		t.Errorf("Chart 4: expected 1 record, got %d", len(got))
	}
}

func TestWriter_AppendAfterCloseFails(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, nil)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Append(context.Background(), tradeRec(day1, 3, 1)); err == nil {
		t.Error("Expected error appending to a closed writer")
	}
}

func TestWriter_ReopenAppends(t *testing.T) {
	// A restarted process must append to the existing daily file, not
	// truncate it.
	dir := t.TempDir()

	w1, err := NewWriter(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := w1.Append(context.Background(), tradeRec(day1, 3, 6502.00)); err != nil {
		t.Fatal(err)
	}
	w1.Close()

	w2, err := NewWriter(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := w2.Append(context.Background(), tradeRec(day1+1, 3, 6502.25)); err != nil {
		t.Fatal(err)
	}
	w2.Close()

	if got := readLines(t, Filename(dir, 3, "20231114")); len(got) != 2 {
		t.Errorf("Expected 2 records after restart, got %d", len(got))
	}
}
