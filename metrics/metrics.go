// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package metrics exposes Prometheus collectors for the resource pool and the
// per-view upscaling state machine.
//
// All Record methods are safe on a nil *Metrics, so components take an
// optional *Metrics and call it unconditionally.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "upscale"

// Metrics contains all collectors of the upscaling orchestrator.
type Metrics struct {
	// Pool metrics
	PoolRequests  *prometheus.CounterVec
	PoolRetirals  *prometheus.CounterVec
	PoolEvictions prometheus.Counter
	PoolEntries   prometheus.Gauge

	// View metrics
	Dispatches       *prometheus.CounterVec
	Restarts         *prometheus.CounterVec
	InitFailures     *prometheus.CounterVec
	ViewState        *prometheus.GaugeVec
	DispatchDuration *prometheus.HistogramVec
}

// New creates the collectors without registering them.
func New() *Metrics {
	return &Metrics{
		PoolRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "requests_total",
				Help:      "Total number of pool lookups by result (hit, miss)",
			},
			[]string{"result"},
		),

		PoolRetirals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "retirals_total",
				Help:      "Total number of textures returned to the pool by result (pooled, rejected)",
			},
			[]string{"result"},
		),

		PoolEvictions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "evictions_total",
				Help:      "Total number of stale pool entries released",
			},
		),

		PoolEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "entries",
				Help:      "Number of textures currently held by the pool",
			},
		),

		Dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "view",
				Name:      "dispatches_total",
				Help:      "Total number of frames executed by path (algorithm, fallback)",
			},
			[]string{"algorithm", "path"},
		),

		Restarts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "view",
				Name:      "restarts_total",
				Help:      "Total number of algorithm restarts by reason (selection, settings)",
			},
			[]string{"reason"},
		),

		InitFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "view",
				Name:      "init_failures_total",
				Help:      "Total number of algorithms skipped during initialization by reason (unsupported, creation)",
			},
			[]string{"algorithm", "reason"},
		),

		ViewState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "view",
				Name:      "state",
				Help:      "View state (0=uninitialized, 1=active, 2=pending restart, 3=reinitializing, 4=no algorithm, 5=destroyed)",
			},
			[]string{"view"},
		),

		DispatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "view",
				Name:      "dispatch_duration_seconds",
				Help:      "Time spent recording one algorithm dispatch",
				Buckets:   []float64{.0001, .0005, .001, .0025, .005, .01, .025, .05, .1},
			},
			[]string{"algorithm"},
		),
	}
}

// Collectors returns every collector, for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.PoolRequests,
		m.PoolRetirals,
		m.PoolEvictions,
		m.PoolEntries,
		m.Dispatches,
		m.Restarts,
		m.InitFailures,
		m.ViewState,
		m.DispatchDuration,
	}
}

// Register registers all collectors with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// RecordPoolRequest counts a pool lookup.
func (m *Metrics) RecordPoolRequest(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.PoolRequests.WithLabelValues(result).Inc()
}

// RecordPoolRetiral counts a texture handed back to the pool.
func (m *Metrics) RecordPoolRetiral(pooled bool) {
	if m == nil {
		return
	}
	result := "rejected"
	if pooled {
		result = "pooled"
	}
	m.PoolRetirals.WithLabelValues(result).Inc()
}

// RecordPoolEvictions counts released stale entries.
func (m *Metrics) RecordPoolEvictions(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.PoolEvictions.Add(float64(n))
}

// RecordPoolEntries updates the pool size gauge.
func (m *Metrics) RecordPoolEntries(n int) {
	if m == nil {
		return
	}
	m.PoolEntries.Set(float64(n))
}

// RecordDispatch counts an executed frame.
func (m *Metrics) RecordDispatch(algorithm string, fallback bool) {
	if m == nil {
		return
	}
	path := "algorithm"
	if fallback {
		path = "fallback"
	}
	m.Dispatches.WithLabelValues(algorithm, path).Inc()
}

// RecordRestart counts a planned restart.
func (m *Metrics) RecordRestart(reason string) {
	if m == nil {
		return
	}
	m.Restarts.WithLabelValues(reason).Inc()
}

// RecordInitFailure counts an algorithm skipped while walking the fallback chain.
func (m *Metrics) RecordInitFailure(algorithm, reason string) {
	if m == nil {
		return
	}
	m.InitFailures.WithLabelValues(algorithm, reason).Inc()
}

// RecordViewState updates the state gauge of a view.
func (m *Metrics) RecordViewState(view string, state int) {
	if m == nil {
		return
	}
	m.ViewState.WithLabelValues(view).Set(float64(state))
}

// RecordDispatchDuration records the time spent in an algorithm dispatch.
func (m *Metrics) RecordDispatchDuration(algorithm string, d time.Duration) {
	if m == nil {
		return
	}
	m.DispatchDuration.WithLabelValues(algorithm).Observe(d.Seconds())
}
