// Command inspect validates recorded daily stream files and prints per-type
// record counts. It is the quick integrity check run against a day of
// output: every line must parse, carry a known type tag and a sane
// timestamp.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"
)

type lineHeader struct {
	T     float64 `json:"t"`
	Sym   string  `json:"sym"`
	Type  string  `json:"type"`
	Chart int     `json:"chart"`
}

type fileReport struct {
	path    string
	lines   int
	bad     int
	byType  map[string]int
	first   float64
	last    float64
	ordered bool
}

func main() {
	dir := flag.String("dir", "./data", "Directory holding daily JSONL stream files")
	pattern := flag.String("pattern", "chart_*.jsonl", "File glob within the directory")
	verbose := flag.Bool("verbose", false, "Print per-file type breakdown")
	flag.Parse()

	logger := log.New(os.Stderr, "[inspect] ", log.LstdFlags)

	paths, err := filepath.Glob(filepath.Join(*dir, *pattern))
	if err != nil {
		logger.Fatalf("Glob: %v", err)
	}
	if len(paths) == 0 {
		logger.Fatalf("No stream files matching %s in %s", *pattern, *dir)
	}
	sort.Strings(paths)

	totals := make(map[string]int)
	totalLines, totalBad := 0, 0

	for _, path := range paths {
		rep, err := inspectFile(path)
		if err != nil {
			logger.Printf("%s: %v", path, err)
			continue
		}
		totalLines += rep.lines
		totalBad += rep.bad
		for typ, n := range rep.byType {
			totals[typ] += n
		}

		status := "ok"
		if rep.bad > 0 {
			status = fmt.Sprintf("%d bad lines", rep.bad)
		}
		if !rep.ordered {
			status += ", out of order"
		}
		fmt.Printf("%s: %d records, %s .. %s, %s\n",
			filepath.Base(rep.path), rep.lines, fmtTime(rep.first), fmtTime(rep.last), status)

		if *verbose {
			printCounts(rep.byType, "  ")
		}
	}

	fmt.Printf("\ntotal: %d records in %d files, %d bad lines\n", totalLines, len(paths), totalBad)
	printCounts(totals, "  ")

	if totalBad > 0 {
		os.Exit(1)
	}
}

func inspectFile(path string) (*fileReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rep := &fileReport{path: path, byType: make(map[string]int), ordered: true}
	prev := 0.0

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		rep.lines++

		var h lineHeader
		if err := json.Unmarshal(line, &h); err != nil || h.Type == "" || h.T <= 0 {
			rep.bad++
			continue
		}
		rep.byType[h.Type]++

		if rep.first == 0 {
			rep.first = h.T
		}
		rep.last = h.T
		if h.T < prev {
			rep.ordered = false
		}
		prev = h.T
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return rep, nil
}

func printCounts(counts map[string]int, indent string) {
	types := make([]string, 0, len(counts))
	for typ := range counts {
		types = append(types, typ)
	}
	sort.Strings(types)
	for _, typ := range types {
		fmt.Printf("%s%-18s %d\n", indent, typ, counts[typ])
	}
}

func fmtTime(t float64) string {
	if t == 0 {
		return "-"
	}
	return time.Unix(int64(t), 0).UTC().Format("15:04:05")
}
