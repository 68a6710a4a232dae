// Package platform defines the capability interfaces the host
// charting/trading platform is consumed through. The recorder core depends
// only on these interfaces, never on a concrete host type; the adapter
// layer (internal/bridge, or a test snapshot) implements them.
package platform

// StudyRef names one computed study attached to a chart.
type StudyRef struct {
	ID   int
	Name string
}

// BarData is one OHLCV bar with buy/sell volume split. Prices are raw
// platform values; normalization happens in the recorder core.
type BarData struct {
	Time      float64 // bar time, Unix seconds
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	BidVolume float64
	AskVolume float64
}

// DepthLevel is one depth-of-book level on one side.
type DepthLevel struct {
	Price float64
	Size  int
}

// TapeKind classifies a time-and-sales entry.
type TapeKind int

const (
	TapeTrade TapeKind = iota
	TapeBid
	TapeAsk
	TapeBidAsk
)

// TapeEntry is one time-and-sales record. Seq is the platform event
// sequence number; zero means the feed does not carry sequence numbers.
type TapeEntry struct {
	Seq     uint64
	Time    float64
	Kind    TapeKind
	Price   float64
	Volume  float64
	Bid     float64
	Ask     float64
	BidSize int
	AskSize int
}

// VAPElement is one volume-at-price element within a bar.
type VAPElement struct {
	Price  float64
	Volume float64
}

// ChartData exposes bar data and session boundaries for a chart.
type ChartData interface {
	// Symbol returns the instrument symbol for a chart, empty if unknown.
	Symbol(chart int) string

	// BarCount returns the number of bars loaded for a chart.
	BarCount(chart int) int

	// Bar returns the bar at index, reporting whether it exists.
	Bar(chart, index int) (BarData, bool)

	// ContainingIndex returns the bar index on chart whose time range
	// contains t, or -1 if the chart has no bars.
	ContainingIndex(chart int, t float64) int

	// IsNewTradingDay reports whether the bar at index starts a new
	// calendar/trading day.
	IsNewTradingDay(chart, index int) bool
}

// SeriesCatalog exposes the named computed series of a chart. Used by the
// study resolver and the event builders.
type SeriesCatalog interface {
	// Studies lists the computed studies currently attached to a chart.
	Studies(chart int) []StudyRef

	// StudyArray returns the value array of one subgraph of a study,
	// reporting whether the study exists.
	StudyArray(chart, studyID, subgraph int) ([]float64, bool)
}

// DepthBook exposes current depth-of-book levels.
type DepthBook interface {
	// BidDepth returns the bid level at rank (1-based), reporting whether
	// the level is populated.
	BidDepth(chart, level int) (DepthLevel, bool)

	// AskDepth returns the ask level at rank (1-based).
	AskDepth(chart, level int) (DepthLevel, bool)

	// TopOfBook returns the level-1 quote as carried by the quote feed,
	// which the platform keeps more current than the depth array.
	TopOfBook(chart int) (bid, ask float64, bidSize, askSize int, ok bool)
}

// Tape exposes the time-and-sales array for a chart. The array may be
// truncated by the platform at any time; callers detect truncation by the
// array shrinking.
type Tape interface {
	TapeEntries(chart int) []TapeEntry
}

// VolumeAtPrice exposes per-bar volume-at-price data.
type VolumeAtPrice interface {
	VAPAtBar(chart, bar int) []VAPElement
}

// Host aggregates every capability the recorder consumes from the platform.
type Host interface {
	ChartData
	SeriesCatalog
	DepthBook
	Tape
	VolumeAtPrice
}
