package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNew_RegistersAllMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ResolutionsTotal.WithLabelValues("space", "allow").Inc()
	m.ResolutionDuration.WithLabelValues("space").Observe(0.005)
	m.GuardrailWarnings.Add(2)
	m.PolicyCacheHits.Inc()
	m.PolicyCacheMisses.Inc()
	m.PolicyCacheSize.Set(7)
	m.AuditDropsTotal.Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, mf := range families {
		byName[mf.GetName()] = mf
	}

	want := []string{
		"scopegate_resolutions_total",
		"scopegate_resolution_duration_seconds",
		"scopegate_guardrail_warnings_total",
		"scopegate_policy_cache_hits_total",
		"scopegate_policy_cache_misses_total",
		"scopegate_policy_cache_size",
		"scopegate_audit_drops_total",
	}
	for _, name := range want {
		if _, ok := byName[name]; !ok {
			t.Errorf("metric %s not registered", name)
		}
	}

	resolutions := byName["scopegate_resolutions_total"]
	if len(resolutions.GetMetric()) != 1 {
		t.Fatalf("resolutions series = %d, want 1", len(resolutions.GetMetric()))
	}
	series := resolutions.GetMetric()[0]
	if series.GetCounter().GetValue() != 1 {
		t.Errorf("resolutions value = %v, want 1", series.GetCounter().GetValue())
	}
	labels := make(map[string]string)
	for _, lp := range series.GetLabel() {
		labels[lp.GetName()] = lp.GetValue()
	}
	if labels["target"] != "space" || labels["result"] != "allow" {
		t.Errorf("labels = %v", labels)
	}

	if byName["scopegate_policy_cache_size"].GetMetric()[0].GetGauge().GetValue() != 7 {
		t.Error("policy cache size gauge not set")
	}
}

func TestNew_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected duplicate registration to panic")
		}
	}()
	New(reg)
}
