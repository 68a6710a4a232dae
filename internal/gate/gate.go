// Package gate implements per-stream emission suppression. Each logical
// stream owns one Gate holding the last emitted state; the orchestrator
// consults it before building a record, so a suppression decision maps to
// at most one physical write downstream.
package gate

import (
	"fmt"
	"math"

	"chart-recorder/internal/domain"
)

// State is the gate's position in its lifecycle. A gate starts Unseen,
// becomes Armed on the first observation (which always emits) and then
// loops between Emitting and Suppressed.
type State int

const (
	Unseen State = iota
	Emitting
	Suppressed
)

// Gate tracks the last emitted state for one logical stream. Mutated only
// through the Admit methods, read by nobody else, reset only at process
// start.
type Gate struct {
	policy  domain.EmissionPolicy
	epsilon float64
	state   State

	lastBar  int
	lastVals []float64
	lastSeq  uint64
}

// New creates a gate with the given policy. Epsilon applies to the
// on-change policy only.
func New(policy domain.EmissionPolicy, epsilon float64) *Gate {
	return &Gate{policy: policy, epsilon: epsilon, lastBar: -1}
}

// Policy returns the gate's emission policy.
func (g *Gate) Policy() domain.EmissionPolicy { return g.policy }

// State returns the gate's current state.
func (g *Gate) State() State { return g.state }

// AdmitBar decides a new-bar-only emission. It emits when the bar index
// differs from the last emitted one; the first observation always emits.
func (g *Gate) AdmitBar(barIndex int) bool {
	if g.state == Unseen || barIndex != g.lastBar {
		g.lastBar = barIndex
		g.state = Emitting
		return true
	}
	g.state = Suppressed
	return false
}

// AdmitValues decides an on-change emission. It emits when any value
// differs from the last emitted vector beyond epsilon, or when the vector
// length changes.
func (g *Gate) AdmitValues(vals ...float64) bool {
	if g.state == Unseen || len(vals) != len(g.lastVals) {
		g.store(vals)
		return true
	}
	for i, v := range vals {
		if math.Abs(v-g.lastVals[i]) > g.epsilon {
			g.store(vals)
			return true
		}
	}
	g.state = Suppressed
	return false
}

// AdmitSeq decides an event-driven emission. It emits for every sequence
// number strictly greater than the last emitted one; value equality never
// suppresses, only sequence equality does.
func (g *Gate) AdmitSeq(seq uint64) bool {
	if g.state == Unseen || seq > g.lastSeq {
		g.lastSeq = seq
		g.state = Emitting
		return true
	}
	g.state = Suppressed
	return false
}

func (g *Gate) store(vals []float64) {
	g.lastVals = append(g.lastVals[:0], vals...)
	g.state = Emitting
}

// Key identifies one logical stream within the gate table. Stream carries
// the stream kind plus any sub-identity (e.g. "depth:BID:3").
type Key struct {
	Chart  int
	Stream string
}

// Table owns the gates for all logical streams, keyed by (source context,
// stream). Lifecycle is the process lifetime; passed explicitly by the
// orchestrator rather than held as ambient global state.
type Table struct {
	gates map[Key]*Gate
}

// NewTable creates an empty gate table.
func NewTable() *Table {
	return &Table{gates: make(map[Key]*Gate)}
}

// Get returns the gate for a key, creating it with the given policy and
// epsilon on first use.
func (t *Table) Get(key Key, policy domain.EmissionPolicy, epsilon float64) *Gate {
	if g, ok := t.gates[key]; ok {
		return g
	}
	g := New(policy, epsilon)
	t.gates[key] = g
	return g
}

// StreamKey builds a table key from a chart and a stream kind.
func StreamKey(chart int, kind domain.StreamKind) Key {
	return Key{Chart: chart, Stream: string(kind)}
}

// SubKey builds a table key with a sub-identity under a stream kind.
func SubKey(chart int, kind domain.StreamKind, sub string) Key {
	return Key{Chart: chart, Stream: fmt.Sprintf("%s:%s", kind, sub)}
}
