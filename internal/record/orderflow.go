// Package record assembles normalized event records per data class. Each
// builder takes validated, already-normalized inputs and constructs the
// typed payload; missing upstream inputs are the caller's problem — a
// builder never produces a partial record.
package record

import (
	"math"

	"chart-recorder/internal/domain"
)

// OrderFlowInputs are the raw per-bar order-flow counts read from the
// upstream footprint study. Delta is recomputed from the volume split
// rather than trusted from the study's own delta subgraph, which is
// mis-mapped on some platform versions.
type OrderFlowInputs struct {
	AskVolume       float64
	BidVolume       float64
	Trades          float64
	CumulativeDelta float64
}

// Delta returns ask volume minus bid volume.
func (in OrderFlowInputs) Delta() float64 { return in.AskVolume - in.BidVolume }

// TotalVolume returns ask volume plus bid volume.
func (in OrderFlowInputs) TotalVolume() float64 { return in.AskVolume + in.BidVolume }

// BuildFootprint constructs the raw order-flow record for one bar.
func BuildFootprint(h domain.Header, barIndex int, in OrderFlowInputs) domain.Footprint {
	return domain.Footprint{
		Header:          h,
		BarIndex:        barIndex,
		AskVolume:       in.AskVolume,
		BidVolume:       in.BidVolume,
		Delta:           in.Delta(),
		Trades:          in.Trades,
		CumulativeDelta: in.CumulativeDelta,
		TotalVolume:     in.TotalVolume(),
	}
}

// BuildMetrics constructs the derived order-flow ratios. The pressure
// flags fire when the signed imbalance ratio exceeds the threshold in
// either direction; both stay false inside the band.
func BuildMetrics(h domain.Header, barIndex int, in OrderFlowInputs, pressureThreshold float64) domain.Metrics {
	total := in.TotalVolume()
	delta := in.Delta()

	var deltaRatio, bidAsk, askBid float64
	if total > 0 {
		deltaRatio = delta / total
	}
	if in.AskVolume > 0 {
		bidAsk = in.BidVolume / in.AskVolume
	}
	if in.BidVolume > 0 {
		askBid = in.AskVolume / in.BidVolume
	}

	return domain.Metrics{
		Header:          h,
		BarIndex:        barIndex,
		DeltaRatio:      deltaRatio,
		BidAskRatio:     bidAsk,
		AskBidRatio:     askBid,
		PressureBullish: deltaRatio > pressureThreshold,
		PressureBearish: deltaRatio < -pressureThreshold,
	}
}

// BuildOrderFlow constructs the secondary order-flow signals. Absorption
// fires when the absolute delta exceeds absorptionThreshold of the total
// volume.
func BuildOrderFlow(h domain.Header, barIndex int, in OrderFlowInputs, absorptionThreshold float64) domain.OrderFlow {
	total := in.TotalVolume()
	delta := in.Delta()

	var imbalance, intensity float64
	if total > 0 {
		imbalance = delta / total
		intensity = in.Trades / total
	}

	trend := 0
	if in.CumulativeDelta > 0 {
		trend = 1
	} else if in.CumulativeDelta < 0 {
		trend = -1
	}

	return domain.OrderFlow{
		Header:            h,
		BarIndex:          barIndex,
		VolumeImbalance:   imbalance,
		TradeIntensity:    intensity,
		DeltaTrend:        trend,
		AbsorptionPattern: total > 0 && math.Abs(delta) > absorptionThreshold*total,
	}
}
