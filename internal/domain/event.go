package domain

// Record is one immutable normalized output unit. Every record carries an
// event timestamp, a stream-type tag and the source chart it is routed to;
// the rest of the payload is type-specific. Records are write-once: after
// construction they flow to the sinks and are never mutated.
type Record interface {
	EventTime() float64
	EventChart() int
	EventType() StreamKind
}

// Header holds the fields mandatory on every record. Chart is the
// destination context: for relayed records it names the context the record
// is stored under, while provenance fields in the payload keep the origin.
type Header struct {
	T     float64    `json:"t"`             // event time, Unix seconds
	Sym   string     `json:"sym,omitempty"` // instrument symbol, if known
	Type  StreamKind `json:"type"`
	Chart int        `json:"chart"`
}

func (h Header) EventTime() float64    { return h.T }
func (h Header) EventChart() int       { return h.Chart }
func (h Header) EventType() StreamKind { return h.Type }

// NewHeader builds a record header for a stream kind and source context.
func NewHeader(t float64, src SourceContext, kind StreamKind) Header {
	return Header{T: t, Sym: src.Symbol, Type: kind, Chart: src.ChartNumber}
}

// BaseData is one OHLCV bar snapshot with buy/sell volume split.
type BaseData struct {
	Header
	BarIndex  int     `json:"i"`
	Open      float64 `json:"o"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Close     float64 `json:"c"`
	Volume    float64 `json:"v"`
	BidVolume float64 `json:"bidvol"`
	AskVolume float64 `json:"askvol"`
}

// VWAP is a derived-average value with up to four symmetric band pairs.
// Unused bands stay zero, matching the band-count configuration.
type VWAP struct {
	Header
	Source   string  `json:"src"`
	BarIndex int     `json:"i"`
	Value    float64 `json:"v"`
	Up1      float64 `json:"up1"`
	Dn1      float64 `json:"dn1"`
	Up2      float64 `json:"up2"`
	Dn2      float64 `json:"dn2"`
	Up3      float64 `json:"up3,omitempty"`
	Dn3      float64 `json:"dn3,omitempty"`
	Up4      float64 `json:"up4,omitempty"`
	Dn4      float64 `json:"dn4,omitempty"`
}

// VVA carries the volume-profile value area for the current period and the
// immediately preceding one. Invariant: VAL <= VAH on both triads.
type VVA struct {
	Header
	BarIndex int     `json:"i"`
	VAH      float64 `json:"vah"`
	VAL      float64 `json:"val"`
	VPOC     float64 `json:"vpoc"`
	PVAH     float64 `json:"pvah"`
	PVAL     float64 `json:"pval"`
	PPOC     float64 `json:"ppoc"`
	IDCurr   int     `json:"id_curr"`
	IDPrev   int     `json:"id_prev"`
}

// PVWAP is the previous-session volume weighted average with sigma bands
// computed over the prior session's volume-at-price data.
type PVWAP struct {
	Header
	BarIndex  int     `json:"i"`
	PrevStart int     `json:"prev_start"`
	PrevEnd   int     `json:"prev_end"`
	Value     float64 `json:"pvwap"`
	Up1       float64 `json:"up1"`
	Dn1       float64 `json:"dn1"`
	Up2       float64 `json:"up2"`
	Dn2       float64 `json:"dn2"`
	Up3       float64 `json:"up3"`
	Dn3       float64 `json:"dn3"`
	Up4       float64 `json:"up4"`
	Dn4       float64 `json:"dn4"`
}

// Footprint is the raw order-flow volume split for one bar.
type Footprint struct {
	Header
	BarIndex        int     `json:"i"`
	AskVolume       float64 `json:"ask_volume"`
	BidVolume       float64 `json:"bid_volume"`
	Delta           float64 `json:"delta"`
	Trades          float64 `json:"trades"`
	CumulativeDelta float64 `json:"cumulative_delta"`
	TotalVolume     float64 `json:"total_volume"`
}

// Metrics carries the derived order-flow ratios and pressure flags.
type Metrics struct {
	Header
	BarIndex        int     `json:"i"`
	DeltaRatio      float64 `json:"delta_ratio"`
	BidAskRatio     float64 `json:"bid_ask_ratio"`
	AskBidRatio     float64 `json:"ask_bid_ratio"`
	PressureBullish bool    `json:"pressure_bullish"`
	PressureBearish bool    `json:"pressure_bearish"`
}

// OrderFlow carries secondary order-flow signals for one bar.
type OrderFlow struct {
	Header
	BarIndex          int     `json:"i"`
	VolumeImbalance   float64 `json:"volume_imbalance"`
	TradeIntensity    float64 `json:"trade_intensity"`
	DeltaTrend        int     `json:"delta_trend"` // -1, 0, +1
	AbsorptionPattern bool    `json:"absorption_pattern"`
}

// Quote is a bid/ask observation. Spread and Mid are only populated for the
// combined BIDASK kind.
type Quote struct {
	Header
	Kind   string  `json:"kind"` // BID, ASK or BIDASK
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	BidQty int     `json:"bq"`
	AskQty int     `json:"aq"`
	Spread float64 `json:"spread,omitempty"`
	Mid    float64 `json:"mid,omitempty"`
	Seq    uint64  `json:"seq,omitempty"`
}

// Trade is one tape print.
type Trade struct {
	Header
	Price float64 `json:"px"`
	Qty   float64 `json:"qty"`
	Seq   uint64  `json:"seq,omitempty"`
}

// Depth is one depth-of-book level. Levels for one side are emitted with
// contiguous ranks starting at 1.
type Depth struct {
	Header
	Side  string  `json:"side"` // BID or ASK
	Level int     `json:"lvl"`
	Price float64 `json:"price"`
	Size  int     `json:"size"`
}

// IndexValue is a cross-source index observation (e.g. a volatility index)
// relayed into this chart's stream. OriginChart, Study and Subgraph keep
// the provenance of the computing context.
type IndexValue struct {
	Header
	BarIndex    int     `json:"i"`
	Last        float64 `json:"last"`
	Mode        int     `json:"mode"` // 0 = chart read, 1 = study overlay
	OriginChart int     `json:"src_chart"`
	Study       int     `json:"study"`
	Subgraph    int     `json:"sg"`
}

// AnnotatedLevel is one named price level from the level-annotation catalog.
// StudyID and Subgraph identify the upstream series so downstream consumers
// can tell same-named levels apart across sessions.
type AnnotatedLevel struct {
	Header
	LevelType string  `json:"level_type"`
	Price     float64 `json:"price"`
	Subgraph  int     `json:"subgraph"`
	StudyID   int     `json:"study_id"`
	Bar       int     `json:"bar"`
}

// Diagnostic records a recoverable condition on a stream. The type tag is
// "<stream>_diag"; diagnostics bypass change gating and are rate-limited by
// the orchestrator instead.
type Diagnostic struct {
	Header
	Msg string `json:"msg"`
}

// DiagKind returns the diagnostic stream tag for a data stream.
func DiagKind(kind StreamKind) StreamKind {
	return kind + "_diag"
}
