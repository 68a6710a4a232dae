// Package engine orchestrates one recording pass per platform update. The
// platform invokes the recorder from a single callback goroutine, so the
// engine holds plain maps and runs the stream passes in a fixed order;
// everything downstream of the gates sees an already-deduplicated record
// flow. Recoverable conditions (unresolved studies, short arrays, empty
// books) degrade the affected stream and surface as diagnostics, never as
// errors out of the pass.
package engine

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"chart-recorder/internal/domain"
	"chart-recorder/internal/gate"
	"chart-recorder/internal/normalize"
	"chart-recorder/internal/observability"
	"chart-recorder/internal/platform"
	"chart-recorder/internal/record"
	"chart-recorder/internal/resolve"
	"chart-recorder/internal/storage"
)

// Logical resolver names.
const (
	logicalVWAP      = "vwap"
	logicalOrderFlow = "orderflow"
)

// tapeCursor tracks the read position into one chart's time-and-sales
// array. Sequence support is probed once per chart from live entries.
type tapeCursor struct {
	index      int
	useSeq     bool
	seqChecked bool
}

// Engine runs the recording passes for all charts against one platform host.
type Engine struct {
	host     platform.Host
	cfg      Config
	norm     *normalize.Normalizer
	resolver *resolve.Resolver
	gates    *gate.Table
	sink     storage.EventSink
	logger   *log.Logger
	metrics  *observability.Metrics

	tape     map[int]*tapeCursor
	lastDiag map[string]string
	pending  map[string]bool
}

// New validates the configuration and builds an engine. metrics may be nil.
func New(host platform.Host, cfg Config, sink storage.EventSink, logger *log.Logger, metrics *observability.Metrics) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	norm, err := normalize.New(cfg.PriceMultiplier, cfg.TickSize, cfg.ScaleVariant)
	if err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	return &Engine{
		host:     host,
		cfg:      cfg,
		norm:     norm,
		resolver: resolve.New(host, logger),
		gates:    gate.NewTable(),
		sink:     sink,
		logger:   logger,
		metrics:  metrics,
		tape:     make(map[int]*tapeCursor),
		lastDiag: make(map[string]string),
		pending:  make(map[string]bool),
	}, nil
}

// Normalizer exposes the engine's price normalizer for adapters that need
// to pre-scale values in the same unit space.
func (e *Engine) Normalizer() *normalize.Normalizer { return e.norm }

// ProcessUpdate runs one full recording pass for a chart. The pass order is
// fixed; each stream gates, builds and writes independently, so a degraded
// stream never stalls the ones after it.
func (e *Engine) ProcessUpdate(ctx context.Context, chart int) {
	start := time.Now()

	last := e.host.BarCount(chart) - 1
	if last < 0 {
		return
	}
	bar, ok := e.host.Bar(chart, last)
	if !ok {
		return
	}
	src := domain.SourceContext{ChartNumber: chart, Symbol: e.host.Symbol(chart)}
	t := bar.Time

	e.emitBaseData(ctx, src, last, bar)
	e.emitVWAP(ctx, src, last, t)
	e.emitVVA(ctx, src, last, t)
	e.emitPVWAP(ctx, src, last, t)
	e.emitOrderFlow(ctx, src, last, t)
	e.emitDepth(ctx, src, t)
	e.emitTopOfBook(ctx, src, t)
	e.emitTape(ctx, src)
	e.emitIndex(ctx, src, last, t)
	e.emitLevels(ctx, src, last, t)

	if e.metrics != nil {
		e.metrics.UpdatesProcessed.WithLabelValues(strconv.Itoa(chart)).Inc()
		e.metrics.PassDuration.Observe(time.Since(start).Seconds())
	}
}

func (e *Engine) emitBaseData(ctx context.Context, src domain.SourceContext, last int, bar platform.BarData) {
	if !e.cfg.enabled(domain.StreamBaseData) {
		return
	}

	o := e.norm.Price(bar.Open)
	h := e.norm.Price(bar.High)
	l := e.norm.Price(bar.Low)
	c := e.norm.Price(bar.Close)

	g := e.gates.Get(gate.StreamKey(src.ChartNumber, domain.StreamBaseData),
		e.cfg.policy(domain.StreamBaseData), e.cfg.ChangeEpsilon)
	if !e.admit(g, last, []float64{o, h, l, c, bar.Volume, bar.BidVolume, bar.AskVolume}, 0) {
		e.suppressed(domain.StreamBaseData)
		return
	}

	e.write(ctx, domain.BaseData{
		Header:    domain.NewHeader(bar.Time, src, domain.StreamBaseData),
		BarIndex:  last,
		Open:      o,
		High:      h,
		Low:       l,
		Close:     c,
		Volume:    bar.Volume,
		BidVolume: bar.BidVolume,
		AskVolume: bar.AskVolume,
	})
}

func (e *Engine) emitVWAP(ctx context.Context, src domain.SourceContext, last int, t float64) {
	if !e.cfg.enabled(domain.StreamVWAP) {
		return
	}

	chart := src.ChartNumber
	binding, ok := e.resolveBinding(chart, logicalVWAP, resolve.Spec{
		ExplicitID: e.cfg.VWAPStudyID,
		Names:      e.cfg.VWAPStudyNames,
	})
	if !ok {
		e.diag(ctx, src, domain.StreamVWAP, t, "study_not_found")
		return
	}

	raw, ok := e.studyValue(chart, binding.StudyID, 0, last)
	if !ok {
		e.diag(ctx, src, domain.StreamVWAP, t, "no_data")
		return
	}
	e.clearDiag(src, domain.StreamVWAP)

	v := e.norm.Price(raw)

	// Bands sit on subgraphs 1..8 as (up, dn) pairs.
	var bands [2 * record.MaxBands]float64
	vals := make([]float64, 0, 1+2*record.MaxBands)
	vals = append(vals, v)
	for b := 0; b < e.cfg.VWAPBands; b++ {
		if up, ok := e.studyValue(chart, binding.StudyID, 2*b+1, last); ok && up != 0 {
			bands[2*b] = e.norm.Price(up)
		}
		if dn, ok := e.studyValue(chart, binding.StudyID, 2*b+2, last); ok && dn != 0 {
			bands[2*b+1] = e.norm.Price(dn)
		}
		vals = append(vals, bands[2*b], bands[2*b+1])
	}

	g := e.gates.Get(gate.StreamKey(chart, domain.StreamVWAP),
		e.cfg.policy(domain.StreamVWAP), e.cfg.ChangeEpsilon)
	if !e.admit(g, last, vals, 0) {
		e.suppressed(domain.StreamVWAP)
		return
	}

	e.write(ctx, domain.VWAP{
		Header:   domain.NewHeader(t, src, domain.StreamVWAP),
		Source:   "study",
		BarIndex: last,
		Value:    v,
		Up1:      bands[0],
		Dn1:      bands[1],
		Up2:      bands[2],
		Dn2:      bands[3],
		Up3:      bands[4],
		Dn3:      bands[5],
		Up4:      bands[6],
		Dn4:      bands[7],
	})
}

func (e *Engine) emitVVA(ctx context.Context, src domain.SourceContext, last int, t float64) {
	if !e.cfg.enabled(domain.StreamVVA) || e.cfg.VVACurrentID <= 0 {
		return
	}

	chart := src.ChartNumber
	vah, val, vpoc, ok := e.readValueArea(chart, e.cfg.VVACurrentID, last)
	if !ok {
		e.diag(ctx, src, domain.StreamVVA, t, "study_not_found")
		return
	}
	e.clearDiag(src, domain.StreamVVA)

	// The previous-period triad is optional; zeros when the study is absent.
	pvah, pval, ppoc, _ := e.readValueArea(chart, e.cfg.VVAPreviousID, last)

	g := e.gates.Get(gate.StreamKey(chart, domain.StreamVVA),
		e.cfg.policy(domain.StreamVVA), e.cfg.ChangeEpsilon)
	if !e.admit(g, last, []float64{vah, val, vpoc, pvah, pval, ppoc}, 0) {
		e.suppressed(domain.StreamVVA)
		return
	}

	e.write(ctx, domain.VVA{
		Header:   domain.NewHeader(t, src, domain.StreamVVA),
		BarIndex: last,
		VAH:      vah,
		VAL:      val,
		VPOC:     vpoc,
		PVAH:     pvah,
		PVAL:     pval,
		PPOC:     ppoc,
		IDCurr:   e.cfg.VVACurrentID,
		IDPrev:   e.cfg.VVAPreviousID,
	})
}

// readValueArea reads one value-area triad. Subgraphs: 1 = point of
// control, 2 = area high, 3 = area low. A swapped high/low pair is
// reordered rather than rejected.
func (e *Engine) readValueArea(chart, studyID, idx int) (vah, val, vpoc float64, ok bool) {
	if studyID <= 0 {
		return 0, 0, 0, false
	}
	p, ok1 := e.studyValue(chart, studyID, 1, idx)
	h, ok2 := e.studyValue(chart, studyID, 2, idx)
	l, ok3 := e.studyValue(chart, studyID, 3, idx)
	if !ok1 && !ok2 && !ok3 {
		return 0, 0, 0, false
	}
	vah = e.norm.Price(h)
	val = e.norm.Price(l)
	vpoc = e.norm.Price(p)
	if val > vah {
		vah, val = val, vah
	}
	return vah, val, vpoc, true
}

func (e *Engine) emitPVWAP(ctx context.Context, src domain.SourceContext, last int, t float64) {
	if !e.cfg.enabled(domain.StreamPVWAP) {
		return
	}

	chart := src.ChartNumber
	currStart := last
	for currStart > 0 && !e.host.IsNewTradingDay(chart, currStart) {
		currStart--
	}
	if currStart <= 0 {
		e.diag(ctx, src, domain.StreamPVWAP, t, "insufficient_history")
		return
	}

	prevEnd := currStart - 1
	prevStart := prevEnd
	for prevStart > 0 && !e.host.IsNewTradingDay(chart, prevStart) {
		prevStart--
	}

	var acc record.VAPAccumulator
	for b := prevStart; b <= prevEnd; b++ {
		for _, el := range e.host.VAPAtBar(chart, b) {
			acc.Add(e.norm.Price(el.Price), el.Volume)
		}
	}
	pvwap, sigma, ok := acc.Value()
	if !ok {
		e.diag(ctx, src, domain.StreamPVWAP, t, "no_prev_session_volume")
		return
	}
	e.clearDiag(src, domain.StreamPVWAP)

	g := e.gates.Get(gate.StreamKey(chart, domain.StreamPVWAP),
		e.cfg.policy(domain.StreamPVWAP), e.cfg.ChangeEpsilon)
	if !e.admit(g, last, []float64{pvwap, sigma}, 0) {
		e.suppressed(domain.StreamPVWAP)
		return
	}

	bands := record.SigmaBands(pvwap, sigma, e.cfg.PVWAPBands)
	e.write(ctx, domain.PVWAP{
		Header:    domain.NewHeader(t, src, domain.StreamPVWAP),
		BarIndex:  last,
		PrevStart: prevStart,
		PrevEnd:   prevEnd,
		Value:     pvwap,
		Up1:       bands[0],
		Dn1:       bands[1],
		Up2:       bands[2],
		Dn2:       bands[3],
		Up3:       bands[4],
		Dn3:       bands[5],
		Up4:       bands[6],
		Dn4:       bands[7],
	})
}

func (e *Engine) emitOrderFlow(ctx context.Context, src domain.SourceContext, last int, t float64) {
	if !e.cfg.enabled(domain.StreamFootprint) {
		return
	}

	chart := src.ChartNumber
	binding, ok := e.resolveBinding(chart, logicalOrderFlow, resolve.Spec{
		ExplicitID: e.cfg.OrderFlowStudyID,
		Names:      e.cfg.OrderFlowNames,
	})
	if !ok {
		e.diag(ctx, src, domain.StreamFootprint, t, "study_not_found")
		return
	}

	sg := e.cfg.OrderFlowSG
	ask, ok1 := e.studyValue(chart, binding.StudyID, sg.AskVolume, last)
	bid, ok2 := e.studyValue(chart, binding.StudyID, sg.BidVolume, last)
	if !ok1 || !ok2 {
		e.diag(ctx, src, domain.StreamFootprint, t, "insufficient_data")
		return
	}
	e.clearDiag(src, domain.StreamFootprint)

	trades, _ := e.studyValue(chart, binding.StudyID, sg.Trades, last)
	cum, _ := e.studyValue(chart, binding.StudyID, sg.Cumulative, last)
	in := record.OrderFlowInputs{
		AskVolume:       ask,
		BidVolume:       bid,
		Trades:          trades,
		CumulativeDelta: cum,
	}

	// One gate decision covers the whole footprint/metrics/orderflow triple.
	g := e.gates.Get(gate.StreamKey(chart, domain.StreamFootprint),
		e.cfg.policy(domain.StreamFootprint), e.cfg.ChangeEpsilon)
	if !e.admit(g, last, []float64{ask, bid, trades, cum}, 0) {
		e.suppressed(domain.StreamFootprint)
		return
	}

	e.write(ctx, record.BuildFootprint(domain.NewHeader(t, src, domain.StreamFootprint), last, in))
	e.write(ctx, record.BuildMetrics(domain.NewHeader(t, src, domain.StreamMetrics), last, in, e.cfg.PressureThreshold))
	e.write(ctx, record.BuildOrderFlow(domain.NewHeader(t, src, domain.StreamOrderFlow), last, in, e.cfg.AbsorptionThreshold))
}

func (e *Engine) emitDepth(ctx context.Context, src domain.SourceContext, t float64) {
	if !e.cfg.enabled(domain.StreamDepth) || e.cfg.MaxDepthLevels == 0 {
		return
	}
	e.emitDepthSide(ctx, src, t, record.DepthSideBid)
	e.emitDepthSide(ctx, src, t, record.DepthSideAsk)
}

// emitDepthSide walks one book side from rank 1 and stops at the first
// unpopulated level, so emitted ranks are always contiguous.
func (e *Engine) emitDepthSide(ctx context.Context, src domain.SourceContext, t float64, side string) {
	chart := src.ChartNumber
	for lvl := 1; lvl <= e.cfg.MaxDepthLevels; lvl++ {
		var dl platform.DepthLevel
		var ok bool
		if side == record.DepthSideBid {
			dl, ok = e.host.BidDepth(chart, lvl)
		} else {
			dl, ok = e.host.AskDepth(chart, lvl)
		}
		if !ok {
			return
		}

		// Rank 1 prefers the quote-feed top of book when it is populated;
		// the depth array lags it on fast markets.
		if lvl == 1 {
			if bid, ask, bq, aq, tok := e.host.TopOfBook(chart); tok {
				if side == record.DepthSideBid && bid > 0 {
					dl = platform.DepthLevel{Price: bid, Size: bq}
				} else if side == record.DepthSideAsk && ask > 0 {
					dl = platform.DepthLevel{Price: ask, Size: aq}
				}
			}
		}

		price := e.norm.Price(dl.Price)
		g := e.gates.Get(gate.SubKey(chart, domain.StreamDepth, fmt.Sprintf("%s:%d", side, lvl)),
			e.cfg.policy(domain.StreamDepth), e.cfg.ChangeEpsilon)
		if !e.admit(g, 0, []float64{price, float64(dl.Size)}, 0) {
			e.suppressed(domain.StreamDepth)
			continue
		}
		e.write(ctx, record.BuildDepth(domain.NewHeader(t, src, domain.StreamDepth), side, lvl, price, dl.Size))
	}
}

// emitTopOfBook emits the combined level-1 quote from the quote feed.
func (e *Engine) emitTopOfBook(ctx context.Context, src domain.SourceContext, t float64) {
	if !e.cfg.enabled(domain.StreamQuote) {
		return
	}
	chart := src.ChartNumber
	bid, ask, bq, aq, ok := e.host.TopOfBook(chart)
	if !ok || bid <= 0 || ask <= 0 {
		return
	}

	nb := e.norm.Price(bid)
	na := e.norm.Price(ask)
	g := e.gates.Get(gate.SubKey(chart, domain.StreamQuote, "L1"),
		domain.PolicyOnChange, e.cfg.ChangeEpsilon)
	if !g.AdmitValues(nb, na, float64(bq), float64(aq)) {
		e.suppressed(domain.StreamQuote)
		return
	}
	e.write(ctx, record.BuildQuote(domain.NewHeader(t, src, domain.StreamQuote),
		record.QuoteKindBidAsk, nb, na, bq, aq, 0))
}

func (e *Engine) emitTape(ctx context.Context, src domain.SourceContext) {
	if !e.cfg.enabled(domain.StreamTrade) {
		return
	}

	chart := src.ChartNumber
	cur := e.tape[chart]
	if cur == nil {
		cur = &tapeCursor{}
		e.tape[chart] = cur
	}

	entries := e.host.TapeEntries(chart)
	if len(entries) < cur.index {
		// Platform truncated the array; restart from the head.
		cur.index = 0
	}

	if !cur.seqChecked && len(entries) > 0 {
		cur.seqChecked = true
		probe := entries
		if len(probe) > 50 {
			probe = probe[len(probe)-50:]
		}
		for _, en := range probe {
			if en.Seq > 0 {
				cur.useSeq = true
				break
			}
		}
		e.logf("chart %d tape sequence support: %v", chart, cur.useSeq)
	}

	fresh := entries[cur.index:]
	cur.index = len(entries)
	if e.cfg.MaxTapeEntries > 0 && len(fresh) > e.cfg.MaxTapeEntries {
		fresh = fresh[len(fresh)-e.cfg.MaxTapeEntries:]
	}

	tradeGate := e.gates.Get(gate.StreamKey(chart, domain.StreamTrade), domain.PolicyEventDriven, 0)
	quoteGate := e.gates.Get(gate.SubKey(chart, domain.StreamQuote, "tape"), domain.PolicyEventDriven, 0)

	for _, en := range fresh {
		if e.metrics != nil {
			e.metrics.TapeEntriesProcessed.Inc()
		}
		switch en.Kind {
		case platform.TapeTrade:
			if en.Price <= 0 || en.Volume <= 0 {
				continue
			}
			if cur.useSeq && !tradeGate.AdmitSeq(en.Seq) {
				e.suppressed(domain.StreamTrade)
				continue
			}
			e.write(ctx, record.BuildTrade(domain.NewHeader(en.Time, src, domain.StreamTrade),
				e.norm.Price(en.Price), en.Volume, en.Seq))

		case platform.TapeBid, platform.TapeAsk, platform.TapeBidAsk:
			if en.Bid <= 0 && en.Ask <= 0 {
				continue
			}
			if cur.useSeq && !quoteGate.AdmitSeq(en.Seq) {
				e.suppressed(domain.StreamQuote)
				continue
			}
			kind := record.QuoteKindBidAsk
			if en.Kind == platform.TapeBid {
				kind = record.QuoteKindBid
			} else if en.Kind == platform.TapeAsk {
				kind = record.QuoteKindAsk
			}
			e.write(ctx, record.BuildQuote(domain.NewHeader(en.Time, src, domain.StreamQuote),
				kind, e.norm.Price(en.Bid), e.norm.Price(en.Ask), en.BidSize, en.AskSize, en.Seq))
		}
	}
}

// admit applies the gate's policy to one observation.
func (e *Engine) admit(g *gate.Gate, barIndex int, vals []float64, seq uint64) bool {
	switch g.Policy() {
	case domain.PolicyNewBarOnly:
		return g.AdmitBar(barIndex)
	case domain.PolicyEventDriven:
		return g.AdmitSeq(seq)
	default:
		return g.AdmitValues(vals...)
	}
}

// resolveBinding wraps the resolver to keep the unresolved-bindings gauge
// and the resolution counter current.
func (e *Engine) resolveBinding(chart int, logical string, spec resolve.Spec) (resolve.Binding, bool) {
	already := e.resolver.Resolved(chart, logical)
	b, ok := e.resolver.Resolve(chart, logical, spec)

	key := fmt.Sprintf("%d|%s", chart, logical)
	switch {
	case ok && !already:
		delete(e.pending, key)
		if e.metrics != nil {
			e.metrics.BindingsResolved.Inc()
			e.metrics.UnresolvedBindings.Set(float64(len(e.pending)))
		}
	case !ok && !e.pending[key]:
		e.pending[key] = true
		if e.metrics != nil {
			e.metrics.UnresolvedBindings.Set(float64(len(e.pending)))
		}
	}
	return b, ok
}

// studyValue reads one subgraph value, reporting false when the study is
// missing or its array does not cover the index.
func (e *Engine) studyValue(chart, studyID, subgraph, idx int) (float64, bool) {
	arr, ok := e.host.StudyArray(chart, studyID, subgraph)
	if !ok || idx < 0 || idx >= len(arr) {
		return 0, false
	}
	return arr[idx], true
}

// write hands one record to the sink. A failed append degrades to a logged
// drop; the pass continues.
func (e *Engine) write(ctx context.Context, rec domain.Record) {
	if err := e.sink.Append(ctx, rec); err != nil {
		e.logf("append %s record for chart %d: %v", rec.EventType(), rec.EventChart(), err)
		if e.metrics != nil {
			e.metrics.SinkDrops.WithLabelValues("primary").Inc()
		}
		return
	}
	if e.metrics != nil {
		e.metrics.RecordsEmitted.WithLabelValues(string(rec.EventType())).Inc()
	}
}

// diag emits a diagnostic record for a stream, suppressing repeats of the
// same message until the condition changes or clears.
func (e *Engine) diag(ctx context.Context, src domain.SourceContext, kind domain.StreamKind, t float64, msg string) {
	key := diagKey(src.ChartNumber, kind)
	if e.lastDiag[key] == msg {
		return
	}
	e.lastDiag[key] = msg
	e.logf("chart %d %s: %s", src.ChartNumber, kind, msg)
	if e.metrics != nil {
		e.metrics.Diagnostics.WithLabelValues(string(kind)).Inc()
	}
	e.write(ctx, domain.Diagnostic{
		Header: domain.NewHeader(t, src, domain.DiagKind(kind)),
		Msg:    msg,
	})
}

// clearDiag re-arms diagnostics for a stream after the condition clears.
func (e *Engine) clearDiag(src domain.SourceContext, kind domain.StreamKind) {
	delete(e.lastDiag, diagKey(src.ChartNumber, kind))
}

func diagKey(chart int, kind domain.StreamKind) string {
	return fmt.Sprintf("%d|%s", chart, kind)
}

func (e *Engine) suppressed(kind domain.StreamKind) {
	if e.metrics != nil {
		e.metrics.RecordsSuppressed.WithLabelValues(string(kind)).Inc()
	}
}

func (e *Engine) logf(format string, args ...any) {
	if e.logger != nil {
		e.logger.Printf(format, args...)
	}
}
