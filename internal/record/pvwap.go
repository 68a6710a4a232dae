package record

import "math"

// VAPAccumulator accumulates volume-at-price elements across a bar range
// to compute a volume weighted average and its standard deviation.
type VAPAccumulator struct {
	sumV   float64
	sumPV  float64
	sumP2V float64
}

// Add accumulates one volume-at-price element.
func (a *VAPAccumulator) Add(price, volume float64) {
	a.sumV += volume
	a.sumPV += price * volume
	a.sumP2V += price * price * volume
}

// Value returns the volume weighted average and sigma. ok is false when no
// volume was accumulated.
func (a *VAPAccumulator) Value() (vwap, sigma float64, ok bool) {
	if a.sumV <= 0 {
		return 0, 0, false
	}
	vwap = a.sumPV / a.sumV
	variance := a.sumP2V/a.sumV - vwap*vwap
	if variance < 0 {
		variance = 0
	}
	return vwap, math.Sqrt(variance), true
}

// sigmaSteps are the band multipliers: ±0.5σ, ±1.0σ, ±1.5σ, ±2.0σ.
var sigmaSteps = [4]float64{0.5, 1.0, 1.5, 2.0}

// MaxBands is the largest supported deviation band count.
const MaxBands = len(sigmaSteps)

// SigmaBands returns up to MaxBands symmetric (upper, lower) pairs around
// center, flattened as [up1, dn1, up2, dn2, ...]. Pairs beyond count stay
// zero.
func SigmaBands(center, sigma float64, count int) [2 * MaxBands]float64 {
	var out [2 * MaxBands]float64
	if count > MaxBands {
		count = MaxBands
	}
	for i := 0; i < count; i++ {
		out[2*i] = center + sigmaSteps[i]*sigma
		out[2*i+1] = center - sigmaSteps[i]*sigma
	}
	return out
}
