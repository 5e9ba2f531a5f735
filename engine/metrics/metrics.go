// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics wires the engine's runtime counters onto Prometheus,
// the module map's "Ambient: metrics" entry. Registration is opt-in: a
// Context constructed with a nil *prometheus.Registry gets a nil
// *Metrics, and every method on *Metrics is nil-receiver safe, so the
// hot path pays one nil check per call site and nothing else when
// metrics are disabled - the same "checked once at construction, not
// per call" shape cmd/cie/index.go's --metrics-addr flag gives its own
// promhttp.Handler wiring (there, an empty flag value skips starting
// the listener at all; here, a nil registry skips collection instead).
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds one Context's worth of Prometheus collectors. The zero
// value is not valid; construct with New.
type Metrics struct {
	heapBytesAllocated  prometheus.Gauge
	gcPauseCount        prometheus.Counter
	parseCount          prometheus.Counter
	exceptionsThrown    prometheus.Counter
	microtaskQueueDepth prometheus.Gauge
}

// New registers a fresh set of collectors on reg and returns a Metrics
// wrapping them. reg may be nil, in which case New returns nil and every
// method on the result becomes a no-op - the embedder opts in by
// supplying a registry (jjs.Options.Metrics), not by a separate boolean.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		heapBytesAllocated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "jjs",
			Name:      "heap_bytes_allocated",
			Help:      "Estimated bytes held by live heap cells in the engine's arena.",
		}),
		gcPauseCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jjs",
			Name:      "gc_pause_total",
			Help:      "Number of stop-the-world mark-and-sweep collections run.",
		}),
		parseCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jjs",
			Name:      "parse_total",
			Help:      "Number of scripts compiled via Context.Parse/Context.Eval.",
		}),
		exceptionsThrown: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jjs",
			Name:      "exceptions_thrown_total",
			Help:      "Number of uncaught exceptions surfaced across the public API.",
		}),
		microtaskQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "jjs",
			Name:      "microtask_queue_depth",
			Help:      "Number of pending Promise reaction jobs as of the last sample.",
		}),
	}
	reg.MustRegister(m.heapBytesAllocated, m.gcPauseCount, m.parseCount, m.exceptionsThrown, m.microtaskQueueDepth)
	return m
}

// SetHeapBytesAllocated records the engine's current estimated live-heap
// size in bytes.
func (m *Metrics) SetHeapBytesAllocated(n uint64) {
	if m == nil {
		return
	}
	m.heapBytesAllocated.Set(float64(n))
}

// IncGCPause records one completed garbage collection pass.
func (m *Metrics) IncGCPause() {
	if m == nil {
		return
	}
	m.gcPauseCount.Inc()
}

// IncParseCount records one completed Parse/Eval compilation.
func (m *Metrics) IncParseCount() {
	if m == nil {
		return
	}
	m.parseCount.Inc()
}

// IncExceptionsThrown records one uncaught exception surfaced to an
// embedder through Eval/Call/Construct/Script.Run.
func (m *Metrics) IncExceptionsThrown() {
	if m == nil {
		return
	}
	m.exceptionsThrown.Inc()
}

// SetMicrotaskQueueDepth records the Promise job queue's current length.
func (m *Metrics) SetMicrotaskQueueDepth(n int) {
	if m == nil {
		return
	}
	m.microtaskQueueDepth.Set(float64(n))
}
