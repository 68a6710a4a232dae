// Package normalize converts raw platform-scaled values into canonical
// prices. One Normalizer is built per source context at startup, so every
// price emitted for that context goes through the same scaling and is
// directly comparable to any other.
package normalize

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidScale is returned when a normalizer is constructed with a
// non-positive multiplier or tick size. This is a fatal configuration
// error: recording with a wrong scale would corrupt every price.
var ErrInvalidScale = errors.New("scale factor must be positive and non-zero")

// Variant selects one of the closed set of raw price representations the
// platform feeds are known to use. Picked once at startup, never switched
// on the hot path.
type Variant int

const (
	// VariantDirect divides by the configured multiplier and rounds to the
	// tick size.
	VariantDirect Variant = iota
	// VariantHundredths additionally undoes a x100 feed scaling when the
	// de-multiplied value still lands above the cutoff. Some real-time
	// feeds deliver index prices in hundredths.
	VariantHundredths
)

// hundredthsCutoff is the threshold above which a de-multiplied price is
// assumed to still carry the x100 feed scaling.
const hundredthsCutoff = 10000.0

// ParseVariant maps a configuration string to a Variant.
func ParseVariant(s string) (Variant, error) {
	switch s {
	case "direct", "":
		return VariantDirect, nil
	case "hundredths":
		return VariantHundredths, nil
	default:
		return 0, fmt.Errorf("unknown scale variant %q", s)
	}
}

// Normalizer converts raw platform values into canonical prices.
type Normalizer struct {
	multiplier float64
	tick       float64
	variant    Variant
}

// New builds a Normalizer. Fails with ErrInvalidScale when multiplier or
// tick is not positive.
func New(multiplier, tick float64, variant Variant) (*Normalizer, error) {
	if multiplier <= 0 {
		return nil, fmt.Errorf("multiplier %v: %w", multiplier, ErrInvalidScale)
	}
	if tick <= 0 {
		return nil, fmt.Errorf("tick size %v: %w", tick, ErrInvalidScale)
	}
	return &Normalizer{multiplier: multiplier, tick: tick, variant: variant}, nil
}

// Price converts a raw platform value into a canonical price. Pure.
func (n *Normalizer) Price(raw float64) float64 {
	px := raw / n.multiplier
	if n.variant == VariantHundredths && px > hundredthsCutoff {
		px /= 100.0
	}
	px = n.roundToTick(px)
	// Residual correction after rounding, then a final rounding pass.
	if n.variant == VariantHundredths && px > hundredthsCutoff {
		px /= 100.0
		px = n.roundToTick(px)
	}
	return px
}

// Tick returns the tick size the normalizer rounds to.
func (n *Normalizer) Tick() float64 { return n.tick }

func (n *Normalizer) roundToTick(px float64) float64 {
	return math.Round(px/n.tick) * n.tick
}
