package domain

// StreamKind identifies one data class within a source context. The set of
// kinds is a closed, versioned schema: the string values double as the
// "type" tag on the wire and must never change meaning.
type StreamKind string

const (
	StreamBaseData  StreamKind = "basedata"
	StreamVWAP      StreamKind = "vwap"
	StreamVVA       StreamKind = "vva"
	StreamPVWAP     StreamKind = "pvwap"
	StreamFootprint StreamKind = "nbcv_footprint"
	StreamMetrics   StreamKind = "nbcv_metrics"
	StreamOrderFlow StreamKind = "nbcv_orderflow"
	StreamQuote     StreamKind = "quote"
	StreamTrade     StreamKind = "trade"
	StreamDepth     StreamKind = "depth"
	StreamIndex     StreamKind = "vix"
	StreamLevel     StreamKind = "annotated_level"
)

// EmissionPolicy selects how the change gate decides whether a newly
// observed value for a stream produces a record.
type EmissionPolicy int

const (
	// PolicyNewBarOnly emits only when the update's bar index differs from
	// the last emitted one.
	PolicyNewBarOnly EmissionPolicy = iota
	// PolicyOnChange emits only when the payload differs from the last
	// emitted payload beyond a configured epsilon.
	PolicyOnChange
	// PolicyEventDriven emits on every new platform event sequence number.
	PolicyEventDriven
)

// String returns the policy name for logs and diagnostics.
func (p EmissionPolicy) String() string {
	switch p {
	case PolicyNewBarOnly:
		return "new-bar-only"
	case PolicyOnChange:
		return "on-change"
	case PolicyEventDriven:
		return "event-driven"
	default:
		return "unknown"
	}
}
