// Package metrics defines the Prometheus metrics for the resolution engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for Scopegate.
// Pass to services that need to record metrics.
type Metrics struct {
	ResolutionsTotal   *prometheus.CounterVec
	ResolutionDuration *prometheus.HistogramVec
	GuardrailWarnings  prometheus.Counter
	PolicyCacheHits    prometheus.Counter
	PolicyCacheMisses  prometheus.Counter
	PolicyCacheSize    prometheus.Gauge
	AuditDropsTotal    prometheus.Counter
}

// New creates and registers all metrics with the given registry.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		ResolutionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "scopegate",
				Name:      "resolutions_total",
				Help:      "Total access and policy resolutions",
			},
			[]string{"target", "result"}, // target=space/area/resource/model/request, result=allow/deny
		),
		ResolutionDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "scopegate",
				Name:      "resolution_duration_seconds",
				Help:      "Resolution duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"target"},
		),
		GuardrailWarnings: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "scopegate",
				Name:      "guardrail_warnings_total",
				Help:      "Structural guardrail warnings surfaced during aggregation",
			},
		),
		PolicyCacheHits: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "scopegate",
				Name:      "policy_cache_hits_total",
				Help:      "Resolved policy cache hits",
			},
		),
		PolicyCacheMisses: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "scopegate",
				Name:      "policy_cache_misses_total",
				Help:      "Resolved policy cache misses",
			},
		),
		PolicyCacheSize: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "scopegate",
				Name:      "policy_cache_size",
				Help:      "Current resolved policy cache size",
			},
		),
		AuditDropsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "scopegate",
				Name:      "audit_drops_total",
				Help:      "Audit records dropped due to store errors",
			},
		),
	}
}
