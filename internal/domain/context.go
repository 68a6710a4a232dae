package domain

// SourceContext identifies one logical data origin: one chart/instrument
// feed on the host platform. Created implicitly on the first update for a
// chart and kept for the process lifetime.
type SourceContext struct {
	ChartNumber int    // platform chart number, also the output routing key
	Symbol      string // instrument symbol as reported by the platform
}
