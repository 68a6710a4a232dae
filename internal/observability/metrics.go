// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the recorder.
type Metrics struct {
	// Emission metrics
	RecordsEmitted    *prometheus.CounterVec
	RecordsSuppressed *prometheus.CounterVec
	Diagnostics       *prometheus.CounterVec

	// Resolution metrics
	UnresolvedBindings prometheus.Gauge
	BindingsResolved   prometheus.Counter

	// Sink metrics
	SinkDrops    *prometheus.CounterVec
	DayRollovers prometheus.Counter

	// Update pass metrics
	UpdatesProcessed     *prometheus.CounterVec
	PassDuration         prometheus.Histogram
	TapeEntriesProcessed prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered on
// the default registry. Call once per process.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "chart_recorder"
	}

	return &Metrics{
		RecordsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "records_emitted_total",
			Help:      "Total number of event records emitted by stream type",
		}, []string{"type"}),
		RecordsSuppressed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "records_suppressed_total",
			Help:      "Total number of observations suppressed by the change gate",
		}, []string{"type"}),
		Diagnostics: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "diagnostics_total",
			Help:      "Total number of diagnostic records by stream type",
		}, []string{"type"}),

		UnresolvedBindings: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resolve",
			Name:      "unresolved_bindings",
			Help:      "Number of logical streams still waiting for their upstream series",
		}),
		BindingsResolved: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolve",
			Name:      "bindings_resolved_total",
			Help:      "Total number of series bindings resolved",
		}),

		SinkDrops: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "sink_drops_total",
			Help:      "Total number of records dropped per sink",
		}, []string{"sink"}),
		DayRollovers: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "day_rollovers_total",
			Help:      "Total number of daily stream rollovers",
		}),

		UpdatesProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "updates_processed_total",
			Help:      "Total number of platform update passes by chart",
		}, []string{"chart"}),
		PassDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "pass_duration_seconds",
			Help:      "Update pass duration in seconds",
			Buckets:   []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05},
		}),
		TapeEntriesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "tape_entries_processed_total",
			Help:      "Total number of time-and-sales entries processed",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
