package engine

import (
	"fmt"

	"chart-recorder/internal/domain"
	"chart-recorder/internal/normalize"
	"chart-recorder/internal/record"
)

// IndexConfig configures the cross-source index stream (e.g. a volatility
// index computed on another chart but recorded under this one).
type IndexConfig struct {
	Enabled bool

	// Mode 0 reads the index from another chart's last price; mode 1 reads
	// a study overlay on the collector chart.
	Mode int

	// Chart is the origin chart for mode 0.
	Chart int

	// StudyID and Subgraph locate the overlay for mode 1.
	StudyID  int
	Subgraph int

	// DestChart routes the emitted records; zero means the collector chart.
	DestChart int
}

// LevelStudyConfig configures one group of annotated price levels.
type LevelStudyConfig struct {
	Role          record.LevelRole
	StudyID       int
	SubgraphCount int
}

// OrderFlowSubgraphs maps the order-flow study's subgraph layout. The
// defaults match the platform's stock footprint study; misconfigured
// installs can override them.
type OrderFlowSubgraphs struct {
	AskVolume  int
	BidVolume  int
	Trades     int
	Cumulative int
}

// Config is the engine's full configuration surface. Read once at startup;
// Validate rejects fatal misconfiguration before any processing begins.
type Config struct {
	// Unit normalization, shared by every price-bearing stream.
	PriceMultiplier float64
	TickSize        float64
	ScaleVariant    normalize.Variant

	MaxDepthLevels int
	MaxTapeEntries int
	VWAPBands      int
	PVWAPBands     int

	// ChangeEpsilon bounds on-change comparisons; PressureThreshold and
	// AbsorptionThreshold parameterize the derived order-flow flags.
	ChangeEpsilon       float64
	PressureThreshold   float64
	AbsorptionThreshold float64

	// Explicit study identifiers override name-based resolution when
	// positive.
	VWAPStudyID      int
	VWAPStudyNames   []string
	VVACurrentID     int
	VVAPreviousID    int
	OrderFlowStudyID int
	OrderFlowNames   []string
	OrderFlowSG      OrderFlowSubgraphs

	Index IndexConfig

	// LevelsChart is the chart the annotated level studies live on and the
	// destination context their records are routed to.
	LevelsChart  int
	LevelStudies []LevelStudyConfig

	// Disabled turns individual streams off; Policies overrides the
	// per-stream default emission policy.
	Disabled map[domain.StreamKind]bool
	Policies map[domain.StreamKind]domain.EmissionPolicy
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		PriceMultiplier:     1,
		TickSize:            0.25,
		ScaleVariant:        normalize.VariantDirect,
		MaxDepthLevels:      20,
		MaxTapeEntries:      10,
		VWAPBands:           2,
		PVWAPBands:          2,
		ChangeEpsilon:       1e-9,
		PressureThreshold:   0.05,
		AbsorptionThreshold: 0.10,
		VWAPStudyNames: []string{
			"Volume Weighted Average Price",
			"VWAP (Volume Weighted Average Price)",
		},
		VVACurrentID:   1,
		VVAPreviousID:  2,
		OrderFlowNames: []string{"Numbers Bars Calculated Values"},
		OrderFlowSG: OrderFlowSubgraphs{
			AskVolume:  5,
			BidVolume:  6,
			Trades:     12,
			Cumulative: 10,
		},
	}
}

// Validate rejects fatal misconfiguration. Recording with an invalid scale
// or depth count would emit wrong data, so the engine refuses to start.
func (c *Config) Validate() error {
	if c.PriceMultiplier <= 0 {
		return fmt.Errorf("price multiplier %v: %w", c.PriceMultiplier, normalize.ErrInvalidScale)
	}
	if c.TickSize <= 0 {
		return fmt.Errorf("tick size %v: %w", c.TickSize, normalize.ErrInvalidScale)
	}
	if c.MaxDepthLevels < 0 {
		return fmt.Errorf("max depth levels must not be negative, got %d", c.MaxDepthLevels)
	}
	if c.MaxTapeEntries < 0 {
		return fmt.Errorf("max tape entries must not be negative, got %d", c.MaxTapeEntries)
	}
	if c.VWAPBands < 0 || c.VWAPBands > record.MaxBands {
		return fmt.Errorf("vwap bands must be 0..%d, got %d", record.MaxBands, c.VWAPBands)
	}
	if c.PVWAPBands < 0 || c.PVWAPBands > record.MaxBands {
		return fmt.Errorf("pvwap bands must be 0..%d, got %d", record.MaxBands, c.PVWAPBands)
	}
	if c.ChangeEpsilon < 0 {
		return fmt.Errorf("change epsilon must not be negative, got %v", c.ChangeEpsilon)
	}
	if c.PressureThreshold < 0 {
		return fmt.Errorf("pressure threshold must not be negative, got %v", c.PressureThreshold)
	}
	if c.AbsorptionThreshold < 0 {
		return fmt.Errorf("absorption threshold must not be negative, got %v", c.AbsorptionThreshold)
	}
	if c.Index.Enabled && c.Index.Mode != 0 && c.Index.Mode != 1 {
		return fmt.Errorf("index mode must be 0 (chart) or 1 (study), got %d", c.Index.Mode)
	}
	return nil
}

// defaultPolicies maps each stream kind to its stock emission policy.
var defaultPolicies = map[domain.StreamKind]domain.EmissionPolicy{
	domain.StreamBaseData:  domain.PolicyNewBarOnly,
	domain.StreamVWAP:      domain.PolicyOnChange,
	domain.StreamVVA:       domain.PolicyNewBarOnly,
	domain.StreamPVWAP:     domain.PolicyNewBarOnly,
	domain.StreamFootprint: domain.PolicyNewBarOnly,
	domain.StreamQuote:     domain.PolicyOnChange,
	domain.StreamTrade:     domain.PolicyEventDriven,
	domain.StreamDepth:     domain.PolicyOnChange,
	domain.StreamIndex:     domain.PolicyOnChange,
	domain.StreamLevel:     domain.PolicyNewBarOnly,
}

// policy returns the emission policy for a stream kind, honoring overrides.
func (c *Config) policy(kind domain.StreamKind) domain.EmissionPolicy {
	if p, ok := c.Policies[kind]; ok {
		return p
	}
	if p, ok := defaultPolicies[kind]; ok {
		return p
	}
	return domain.PolicyOnChange
}

// enabled reports whether a stream kind is active.
func (c *Config) enabled(kind domain.StreamKind) bool {
	return !c.Disabled[kind]
}
