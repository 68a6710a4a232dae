// Package resolve maps logical series names to concrete upstream study
// bindings. The platform exposes computed studies only by opaque numeric
// identifiers or by display name; resolution happens lazily on first use
// and is retried every update until it succeeds, since an upstream study
// may attach after the recorder starts.
package resolve

import (
	"fmt"
	"log"
	"strings"

	"chart-recorder/internal/platform"
)

// Spec describes how to locate one upstream series.
type Spec struct {
	// ExplicitID binds directly to a study identifier when positive,
	// bypassing name resolution. It is still validated against the catalog.
	ExplicitID int

	// Names are candidate display names, tried in order with exact
	// case-insensitive matching. Several platform versions expose the same
	// study under slightly different names.
	Names []string
}

// Binding is the resolved link from a logical stream to its upstream
// series. Immutable once resolved for the remainder of the session, so a
// later-attached study with the same name cannot steal the stream.
type Binding struct {
	StudyID int
}

// Resolver caches successful bindings per (chart, logical name).
type Resolver struct {
	catalog platform.SeriesCatalog
	bound   map[string]Binding
	logger  *log.Logger
}

// New creates a Resolver over a series catalog.
func New(catalog platform.SeriesCatalog, logger *log.Logger) *Resolver {
	return &Resolver{
		catalog: catalog,
		bound:   make(map[string]Binding),
		logger:  logger,
	}
}

// Resolve returns the binding for a logical name on a chart, resolving it
// on first use. The second result is false while the series stays
// unresolved; callers treat the dependent stream as inactive for the
// current update and retry on the next one.
func (r *Resolver) Resolve(chart int, logical string, spec Spec) (Binding, bool) {
	key := bindKey(chart, logical)
	if b, ok := r.bound[key]; ok {
		return b, true
	}

	if spec.ExplicitID > 0 {
		if r.studyExists(chart, spec.ExplicitID) {
			b := Binding{StudyID: spec.ExplicitID}
			r.bound[key] = b
			r.logf("resolved %s on chart %d to explicit study id %d", logical, chart, spec.ExplicitID)
			return b, true
		}
		return Binding{}, false
	}

	for _, name := range spec.Names {
		for _, ref := range r.catalog.Studies(chart) {
			if strings.EqualFold(ref.Name, name) {
				b := Binding{StudyID: ref.ID}
				r.bound[key] = b
				r.logf("resolved %s on chart %d to study %d (%q)", logical, chart, ref.ID, ref.Name)
				return b, true
			}
		}
	}
	return Binding{}, false
}

// Resolved reports whether a logical name is already bound on a chart.
func (r *Resolver) Resolved(chart int, logical string) bool {
	_, ok := r.bound[bindKey(chart, logical)]
	return ok
}

func (r *Resolver) studyExists(chart, id int) bool {
	for _, ref := range r.catalog.Studies(chart) {
		if ref.ID == id {
			return true
		}
	}
	return false
}

func (r *Resolver) logf(format string, args ...any) {
	if r.logger != nil {
		r.logger.Printf(format, args...)
	}
}

func bindKey(chart int, logical string) string {
	return fmt.Sprintf("%d|%s", chart, logical)
}
