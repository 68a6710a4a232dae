package engine

import (
	"context"
	"fmt"

	"chart-recorder/internal/domain"
	"chart-recorder/internal/gate"
	"chart-recorder/internal/record"
)

// Cross-source relay passes. A relayed record is routed to a destination
// context that differs from the one whose data produced it; the change gate
// is the destination's, so suppression follows what the destination has
// already stored, and payload provenance fields keep the origin.

// destContext builds the destination source context for relayed streams.
// destChart <= 0 falls back to the collector chart.
func (e *Engine) destContext(src domain.SourceContext, destChart int) domain.SourceContext {
	if destChart <= 0 || destChart == src.ChartNumber {
		return src
	}
	return domain.SourceContext{ChartNumber: destChart, Symbol: e.host.Symbol(destChart)}
}

// emitIndex records the cross-source index value (e.g. a volatility index
// kept on a companion chart) under the destination context.
func (e *Engine) emitIndex(ctx context.Context, src domain.SourceContext, last int, t float64) {
	ic := e.cfg.Index
	if !ic.Enabled || !e.cfg.enabled(domain.StreamIndex) {
		return
	}

	dest := e.destContext(src, ic.DestChart)

	var (
		value       float64
		originChart int
		barIndex    = last
	)
	switch ic.Mode {
	case 0:
		originChart = ic.Chart
		vi := e.host.ContainingIndex(ic.Chart, t)
		if vi < 0 {
			e.diag(ctx, dest, domain.StreamIndex, t, "no_data")
			return
		}
		bar, ok := e.host.Bar(ic.Chart, vi)
		if !ok {
			e.diag(ctx, dest, domain.StreamIndex, t, "no_data")
			return
		}
		value = bar.Close
		barIndex = vi
	case 1:
		originChart = src.ChartNumber
		v, ok := e.studyValue(src.ChartNumber, ic.StudyID, ic.Subgraph, last)
		if !ok {
			e.diag(ctx, dest, domain.StreamIndex, t, "study_not_found")
			return
		}
		value = v
	}
	if value <= 0 {
		e.diag(ctx, dest, domain.StreamIndex, t, "no_data")
		return
	}
	e.clearDiag(dest, domain.StreamIndex)

	// Index values arrive in index points, not contract price units; no
	// normalization applies.
	g := e.gates.Get(gate.StreamKey(dest.ChartNumber, domain.StreamIndex),
		e.cfg.policy(domain.StreamIndex), e.cfg.ChangeEpsilon)
	if !e.admit(g, barIndex, []float64{value}, 0) {
		e.suppressed(domain.StreamIndex)
		return
	}

	e.write(ctx, domain.IndexValue{
		Header:      domain.NewHeader(t, dest, domain.StreamIndex),
		BarIndex:    barIndex,
		Last:        value,
		Mode:        ic.Mode,
		OriginChart: originChart,
		Study:       ic.StudyID,
		Subgraph:    ic.Subgraph,
	})
}

// emitLevels records the annotated level catalog kept on the levels chart.
// One gate decision per update covers the whole batch of level records.
func (e *Engine) emitLevels(ctx context.Context, src domain.SourceContext, last int, t float64) {
	if !e.cfg.enabled(domain.StreamLevel) || e.cfg.LevelsChart <= 0 || len(e.cfg.LevelStudies) == 0 {
		return
	}

	dest := e.destContext(src, e.cfg.LevelsChart)
	iDest := e.host.ContainingIndex(dest.ChartNumber, t)
	if iDest < 0 {
		e.diag(ctx, dest, domain.StreamLevel, t, "no_data")
		return
	}

	g := e.gates.Get(gate.StreamKey(dest.ChartNumber, domain.StreamLevel),
		e.cfg.policy(domain.StreamLevel), e.cfg.ChangeEpsilon)
	if !e.admit(g, last, nil, 0) {
		e.suppressed(domain.StreamLevel)
		return
	}

	for _, ls := range e.cfg.LevelStudies {
		for sg := 1; sg <= ls.SubgraphCount; sg++ {
			val, bar, ok := e.levelValue(dest.ChartNumber, ls.StudyID, sg, iDest)
			if !ok {
				e.diag(ctx, dest, domain.StreamLevel, t,
					fmt.Sprintf("no_value study=%d sg=%d", ls.StudyID, sg))
				continue
			}
			e.write(ctx, domain.AnnotatedLevel{
				Header:    domain.NewHeader(t, dest, domain.StreamLevel),
				LevelType: record.LevelTypeName(ls.Role, sg),
				Price:     e.norm.Price(val),
				Subgraph:  sg,
				StudyID:   ls.StudyID,
				Bar:       bar,
			})
		}
	}
}

// levelValue reads a level subgraph at idx, falling back to the most recent
// non-zero value when the study only populates historical bars.
func (e *Engine) levelValue(chart, studyID, subgraph, idx int) (float64, int, bool) {
	arr, ok := e.host.StudyArray(chart, studyID, subgraph)
	if !ok || len(arr) == 0 {
		return 0, 0, false
	}
	if idx >= len(arr) {
		idx = len(arr) - 1
	}
	for i := idx; i >= 0; i-- {
		if arr[i] != 0 {
			return arr[i], i, true
		}
	}
	return 0, 0, false
}
