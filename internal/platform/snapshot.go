package platform

import "sort"

// Snapshot is a mutable in-memory Host implementation. The bridge applies
// incoming host frames onto it before driving an update pass; tests script
// it directly. All access happens on the single callback goroutine, so no
// locking is needed.
type Snapshot struct {
	symbols map[int]string
	bars    map[int][]BarData
	newDays map[int]map[int]bool
	studies map[int][]StudyRef
	arrays  map[int]map[int]map[int][]float64 // chart -> study -> subgraph
	bids    map[int][]DepthLevel
	asks    map[int][]DepthLevel
	l1      map[int]topOfBook
	tape    map[int][]TapeEntry
	vap     map[int]map[int][]VAPElement // chart -> bar
}

type topOfBook struct {
	bid, ask         float64
	bidSize, askSize int
	ok               bool
}

// NewSnapshot creates an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		symbols: make(map[int]string),
		bars:    make(map[int][]BarData),
		newDays: make(map[int]map[int]bool),
		studies: make(map[int][]StudyRef),
		arrays:  make(map[int]map[int]map[int][]float64),
		bids:    make(map[int][]DepthLevel),
		asks:    make(map[int][]DepthLevel),
		l1:      make(map[int]topOfBook),
		tape:    make(map[int][]TapeEntry),
		vap:     make(map[int]map[int][]VAPElement),
	}
}

// Compile-time interface check.
var _ Host = (*Snapshot)(nil)

// SetSymbol sets the instrument symbol for a chart.
func (s *Snapshot) SetSymbol(chart int, sym string) { s.symbols[chart] = sym }

// AppendBar appends a bar to a chart and returns its index.
func (s *Snapshot) AppendBar(chart int, bar BarData, newDay bool) int {
	s.bars[chart] = append(s.bars[chart], bar)
	idx := len(s.bars[chart]) - 1
	if newDay {
		if s.newDays[chart] == nil {
			s.newDays[chart] = make(map[int]bool)
		}
		s.newDays[chart][idx] = true
	}
	return idx
}

// SetBar replaces the bar at index, extending the array if needed.
func (s *Snapshot) SetBar(chart, index int, bar BarData) {
	for len(s.bars[chart]) <= index {
		s.bars[chart] = append(s.bars[chart], BarData{})
	}
	s.bars[chart][index] = bar
}

// SetStudy registers a study and replaces one subgraph array.
func (s *Snapshot) SetStudy(chart int, ref StudyRef, subgraph int, values []float64) {
	found := false
	for _, r := range s.studies[chart] {
		if r.ID == ref.ID {
			found = true
			break
		}
	}
	if !found {
		s.studies[chart] = append(s.studies[chart], ref)
	}
	if s.arrays[chart] == nil {
		s.arrays[chart] = make(map[int]map[int][]float64)
	}
	if s.arrays[chart][ref.ID] == nil {
		s.arrays[chart][ref.ID] = make(map[int][]float64)
	}
	s.arrays[chart][ref.ID][subgraph] = values
}

// SetDepth replaces the depth arrays for a chart (rank 1 first).
func (s *Snapshot) SetDepth(chart int, bids, asks []DepthLevel) {
	s.bids[chart] = bids
	s.asks[chart] = asks
}

// SetTopOfBook sets the level-1 quote for a chart.
func (s *Snapshot) SetTopOfBook(chart int, bid, ask float64, bidSize, askSize int) {
	s.l1[chart] = topOfBook{bid: bid, ask: ask, bidSize: bidSize, askSize: askSize, ok: true}
}

// SetTape replaces the time-and-sales array for a chart.
func (s *Snapshot) SetTape(chart int, entries []TapeEntry) { s.tape[chart] = entries }

// AppendTape appends time-and-sales entries for a chart.
func (s *Snapshot) AppendTape(chart int, entries ...TapeEntry) {
	s.tape[chart] = append(s.tape[chart], entries...)
}

// SetVAP replaces the volume-at-price elements for one bar.
func (s *Snapshot) SetVAP(chart, bar int, elems []VAPElement) {
	if s.vap[chart] == nil {
		s.vap[chart] = make(map[int][]VAPElement)
	}
	s.vap[chart][bar] = elems
}

func (s *Snapshot) Symbol(chart int) string { return s.symbols[chart] }

func (s *Snapshot) BarCount(chart int) int { return len(s.bars[chart]) }

func (s *Snapshot) Bar(chart, index int) (BarData, bool) {
	bars := s.bars[chart]
	if index < 0 || index >= len(bars) {
		return BarData{}, false
	}
	return bars[index], true
}

func (s *Snapshot) ContainingIndex(chart int, t float64) int {
	bars := s.bars[chart]
	if len(bars) == 0 {
		return -1
	}
	// First bar with time > t, minus one; clamped to the array.
	idx := sort.Search(len(bars), func(i int) bool { return bars[i].Time > t })
	if idx == 0 {
		return 0
	}
	return idx - 1
}

func (s *Snapshot) IsNewTradingDay(chart, index int) bool {
	return s.newDays[chart][index]
}

func (s *Snapshot) Studies(chart int) []StudyRef { return s.studies[chart] }

func (s *Snapshot) StudyArray(chart, studyID, subgraph int) ([]float64, bool) {
	byStudy, ok := s.arrays[chart]
	if !ok {
		return nil, false
	}
	bySG, ok := byStudy[studyID]
	if !ok {
		return nil, false
	}
	return bySG[subgraph], true
}

func (s *Snapshot) BidDepth(chart, level int) (DepthLevel, bool) {
	return depthAt(s.bids[chart], level)
}

func (s *Snapshot) AskDepth(chart, level int) (DepthLevel, bool) {
	return depthAt(s.asks[chart], level)
}

func depthAt(levels []DepthLevel, level int) (DepthLevel, bool) {
	if level < 1 || level > len(levels) {
		return DepthLevel{}, false
	}
	l := levels[level-1]
	if l.Price == 0 || l.Size == 0 {
		return DepthLevel{}, false
	}
	return l, true
}

func (s *Snapshot) TopOfBook(chart int) (float64, float64, int, int, bool) {
	t := s.l1[chart]
	return t.bid, t.ask, t.bidSize, t.askSize, t.ok
}

func (s *Snapshot) TapeEntries(chart int) []TapeEntry { return s.tape[chart] }

func (s *Snapshot) VAPAtBar(chart, bar int) []VAPElement { return s.vap[chart][bar] }
