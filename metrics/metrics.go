// Package metrics exposes lightweight, monotonically increasing
// counters for the halo-exchange engine: bytes moved per transport
// strategy, and rounds completed. It mirrors the reference engine's
// own HTTP+expvar-shaped monitoring subsystem in data model only —
// serving metrics over HTTP is an outer-surface concern this module
// leaves to the embedding program.
package metrics

import (
	"sync/atomic"

	"github.com/mengshanfeng/stencil-2/config"
)

// numStrategies is the number of transport.Strategy values. Kept here
// rather than importing package transport to avoid a cycle (transport
// reports into metrics); callers pass the strategy as a plain int.
const numStrategies = 3

// Registry holds the process-wide counters. Sampling is gated by
// config.EnableMonitoring so the hot exchange path pays no cost when
// monitoring is off.
type Registry struct {
	bytesByStrategy [numStrategies]int64
	rounds          int64
}

// Default is the process-wide registry every transport and domain
// reports into.
var Default = NewRegistry()

// NewRegistry constructs an empty registry. Exposed for tests that
// want an isolated counter set instead of the shared Default.
func NewRegistry() *Registry { return &Registry{} }

// AddBytes adds n bytes to the counter for the given transport
// strategy index. A no-op unless config.EnableMonitoring is set.
func (r *Registry) AddBytes(strategy int, n int64) {
	if !config.EnableMonitoring {
		return
	}
	if strategy < 0 || strategy >= numStrategies {
		return
	}
	atomic.AddInt64(&r.bytesByStrategy[strategy], n)
}

// IncRounds increments the completed-exchange-round counter. A no-op
// unless config.EnableMonitoring is set.
func (r *Registry) IncRounds() {
	if !config.EnableMonitoring {
		return
	}
	atomic.AddInt64(&r.rounds, 1)
}

// Snapshot is a point-in-time read of the registry's counters.
type Snapshot struct {
	BytesByStrategy [numStrategies]int64
	Rounds          int64
}

// Snapshot reads the current counter values.
func (r *Registry) Snapshot() Snapshot {
	var s Snapshot
	for i := range s.BytesByStrategy {
		s.BytesByStrategy[i] = atomic.LoadInt64(&r.bytesByStrategy[i])
	}
	s.Rounds = atomic.LoadInt64(&r.rounds)
	return s
}
