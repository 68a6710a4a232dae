package record

import (
	"math"
	"testing"

	"chart-recorder/internal/domain"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func testHeader(kind domain.StreamKind) domain.Header {
	return domain.Header{T: 1700000000, Sym: "ESZ5", Type: kind, Chart: 3}
}

func TestBuildFootprint_DeltaRecomputed(t *testing.T) {
	in := OrderFlowInputs{AskVolume: 1250, BidVolume: 1100, Trades: 230, CumulativeDelta: 410}

	fp := BuildFootprint(testHeader(domain.StreamFootprint), 42, in)
	if fp.Delta != 150 {
		t.Errorf("Expected delta 150, got %v", fp.Delta)
	}
	if fp.TotalVolume != 2350 {
		t.Errorf("Expected total 2350, got %v", fp.TotalVolume)
	}
	if fp.BarIndex != 42 || fp.AskVolume != 1250 || fp.BidVolume != 1100 {
		t.Errorf("Unexpected footprint %+v", fp)
	}
}

func TestBuildMetrics_RatiosAndPressure(t *testing.T) {
	in := OrderFlowInputs{AskVolume: 1250, BidVolume: 1100, Trades: 230, CumulativeDelta: 410}

	m := BuildMetrics(testHeader(domain.StreamMetrics), 42, in, 0.05)
	if !approx(m.DeltaRatio, 150.0/2350.0) {
		t.Errorf("Expected delta ratio %v, got %v", 150.0/2350.0, m.DeltaRatio)
	}
	if !approx(m.BidAskRatio, 0.88) {
		t.Errorf("Expected bid/ask 0.88, got %v", m.BidAskRatio)
	}
	if !approx(m.AskBidRatio, 1250.0/1100.0) {
		t.Errorf("Expected ask/bid %v, got %v", 1250.0/1100.0, m.AskBidRatio)
	}
	// Delta ratio ~0.0638 clears the 0.05 threshold.
	if !m.PressureBullish || m.PressureBearish {
		t.Errorf("Expected bullish pressure only, got bullish=%v bearish=%v",
			m.PressureBullish, m.PressureBearish)
	}
}

func TestBuildMetrics_ThresholdBand(t *testing.T) {
	// Same volumes, higher threshold: inside the band both flags stay false.
	in := OrderFlowInputs{AskVolume: 1250, BidVolume: 1100}
	m := BuildMetrics(testHeader(domain.StreamMetrics), 0, in, 0.10)
	if m.PressureBullish || m.PressureBearish {
		t.Errorf("Expected no pressure inside the band, got bullish=%v bearish=%v",
			m.PressureBullish, m.PressureBearish)
	}

	bear := BuildMetrics(testHeader(domain.StreamMetrics), 0,
		OrderFlowInputs{AskVolume: 1000, BidVolume: 1400}, 0.05)
	if bear.PressureBullish || !bear.PressureBearish {
		t.Errorf("Expected bearish pressure, got bullish=%v bearish=%v",
			bear.PressureBullish, bear.PressureBearish)
	}
}

func TestBuildMetrics_ZeroVolumeGuards(t *testing.T) {
	m := BuildMetrics(testHeader(domain.StreamMetrics), 0, OrderFlowInputs{}, 0.05)
	if m.DeltaRatio != 0 || m.BidAskRatio != 0 || m.AskBidRatio != 0 {
		t.Errorf("Expected zero ratios on empty bar, got %+v", m)
	}
	if m.PressureBullish || m.PressureBearish {
		t.Error("Empty bar must not report pressure")
	}

	oneSided := BuildMetrics(testHeader(domain.StreamMetrics), 0,
		OrderFlowInputs{AskVolume: 500}, 0.05)
	if oneSided.BidAskRatio != 0 {
		t.Errorf("Expected bid/ask 0 with zero bid volume, got %v", oneSided.BidAskRatio)
	}
	if oneSided.AskBidRatio != 0 {
		t.Errorf("Expected ask/bid 0 guard with zero bid volume, got %v", oneSided.AskBidRatio)
	}
}

func TestBuildOrderFlow_Signals(t *testing.T) {
	in := OrderFlowInputs{AskVolume: 1250, BidVolume: 1100, Trades: 230, CumulativeDelta: 410}

	of := BuildOrderFlow(testHeader(domain.StreamOrderFlow), 42, in, 0.10)
	if !approx(of.VolumeImbalance, 150.0/2350.0) {
		t.Errorf("Expected imbalance %v, got %v", 150.0/2350.0, of.VolumeImbalance)
	}
	if !approx(of.TradeIntensity, 230.0/2350.0) {
		t.Errorf("Expected intensity %v, got %v", 230.0/2350.0, of.TradeIntensity)
	}
	if of.DeltaTrend != 1 {
		t.Errorf("Expected trend +1 for positive cumulative delta, got %d", of.DeltaTrend)
	}
	// |150| < 0.10 * 2350 = 235, no absorption.
	if of.AbsorptionPattern {
		t.Error("Expected no absorption below threshold")
	}
}

func TestBuildOrderFlow_AbsorptionAndTrend(t *testing.T) {
	in := OrderFlowInputs{AskVolume: 2000, BidVolume: 1000, CumulativeDelta: -5}
	of := BuildOrderFlow(testHeader(domain.StreamOrderFlow), 0, in, 0.10)
	// |1000| > 0.10 * 3000.
	if !of.AbsorptionPattern {
		t.Error("Expected absorption above threshold")
	}
	if of.DeltaTrend != -1 {
		t.Errorf("Expected trend -1, got %d", of.DeltaTrend)
	}

	flat := BuildOrderFlow(testHeader(domain.StreamOrderFlow), 0, OrderFlowInputs{}, 0.10)
	if flat.DeltaTrend != 0 || flat.AbsorptionPattern {
		t.Errorf("Empty bar must be neutral, got %+v", flat)
	}
}
