// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordPoolRequest(true)
	m.RecordPoolRetiral(false)
	m.RecordPoolEvictions(3)
	m.RecordPoolEntries(1)
	m.RecordDispatch("fsr", true)
	m.RecordRestart("selection")
	m.RecordInitFailure("fsr", "unsupported")
	m.RecordViewState("main", 1)
	m.RecordDispatchDuration("fsr", time.Millisecond)
}

func TestRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := m.Register(reg); err == nil {
		t.Error("registering twice should fail")
	}

	m.RecordPoolRequest(true)
	m.RecordDispatchDuration("taa", time.Millisecond)
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := map[string]bool{}
	for _, mf := range families {
		found[mf.GetName()] = true
	}
	for _, name := range []string{"upscale_pool_requests_total", "upscale_view_dispatch_duration_seconds"} {
		if !found[name] {
			t.Errorf("metric %s not gathered", name)
		}
	}
}

func TestRecord(t *testing.T) {
	m := New()

	m.RecordPoolRequest(true)
	m.RecordPoolRequest(true)
	m.RecordPoolRequest(false)
	if got := testutil.ToFloat64(m.PoolRequests.WithLabelValues("hit")); got != 2 {
		t.Errorf("hits = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.PoolRequests.WithLabelValues("miss")); got != 1 {
		t.Errorf("misses = %v, want 1", got)
	}

	m.RecordPoolRetiral(false)
	if got := testutil.ToFloat64(m.PoolRetirals.WithLabelValues("rejected")); got != 1 {
		t.Errorf("rejected = %v, want 1", got)
	}

	m.RecordPoolEvictions(0)
	m.RecordPoolEvictions(4)
	if got := testutil.ToFloat64(m.PoolEvictions); got != 4 {
		t.Errorf("evictions = %v, want 4", got)
	}

	m.RecordPoolEntries(7)
	if got := testutil.ToFloat64(m.PoolEntries); got != 7 {
		t.Errorf("entries = %v, want 7", got)
	}

	m.RecordDispatch("spatial", true)
	if got := testutil.ToFloat64(m.Dispatches.WithLabelValues("spatial", "fallback")); got != 1 {
		t.Errorf("fallback dispatches = %v, want 1", got)
	}

	m.RecordViewState("main", 4)
	if got := testutil.ToFloat64(m.ViewState.WithLabelValues("main")); got != 4 {
		t.Errorf("view state = %v, want 4", got)
	}
}
