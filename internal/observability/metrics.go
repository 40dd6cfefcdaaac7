package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector is the narrow contract the dispatch path reports into.
// Implementations must be fire-and-forget: they never block and never fail
// the dispatch.
type Collector interface {
	// Record reports one dispatch outcome.
	Record(duration time.Duration, requestType string, cacheHit bool)
	// RecordMetric reports an arbitrary named gauge value.
	RecordMetric(name string, value float64)
}

// NopCollector discards everything. Used in tests and as a safe default.
type NopCollector struct{}

func (NopCollector) Record(time.Duration, string, bool) {}
func (NopCollector) RecordMetric(string, float64)       {}

// Metrics holds all Prometheus metrics for engine self-monitoring.
// It uses a custom registry to avoid polluting the global default.
type Metrics struct {
	Registry *prometheus.Registry

	// Dispatch metrics
	OptimizeDuration *prometheus.HistogramVec
	OptimizeTotal    *prometheus.CounterVec

	// Cache metrics
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	CacheEvictions prometheus.Counter
	CacheSize      prometheus.Gauge

	// Plugin metrics
	PluginExecutions *prometheus.CounterVec
	PluginsEnabled   prometheus.Gauge

	// Scheduling metrics
	PlacementsTotal  *prometheus.CounterVec
	ShardCount       prometheus.Histogram
	ScheduleDuration prometheus.Histogram
	CompletionRatio  prometheus.Gauge

	// Provider metrics
	ProviderErrors *prometheus.CounterVec
	ProviderNodes  *prometheus.GaugeVec

	// Named gauges reported through RecordMetric.
	Custom *prometheus.GaugeVec
}

// NewMetrics creates a Metrics instance with all Prometheus metrics
// registered on a custom registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		OptimizeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "optiplace_engine_optimize_duration_seconds",
			Help:    "Duration of optimize dispatches in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"type", "cache"}),
		OptimizeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "optiplace_engine_optimize_total",
			Help: "Total number of optimize dispatches.",
		}, []string{"type", "outcome"}),

		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "optiplace_engine_cache_hits_total",
			Help: "Total number of result cache hits.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "optiplace_engine_cache_misses_total",
			Help: "Total number of result cache misses.",
		}),
		CacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "optiplace_engine_cache_evictions_total",
			Help: "Total number of result cache evictions.",
		}),
		CacheSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "optiplace_engine_cache_size",
			Help: "Current number of resident cache entries.",
		}),

		PluginExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "optiplace_engine_plugin_executions_total",
			Help: "Total number of plugin optimize executions.",
		}, []string{"plugin", "outcome"}),
		PluginsEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "optiplace_engine_plugins_enabled",
			Help: "Current number of enabled plugins.",
		}),

		PlacementsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "optiplace_engine_placements_total",
			Help: "Total number of workload placement attempts.",
		}, []string{"provider", "outcome"}),
		ShardCount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "optiplace_engine_geo_shards",
			Help:    "Number of geo shards per batch scheduling call.",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
		}),
		ScheduleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "optiplace_engine_schedule_duration_seconds",
			Help:    "Duration of batch scheduling calls in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		CompletionRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "optiplace_engine_schedule_completion_ratio",
			Help: "scheduled/requested ratio of the most recent batch.",
		}),

		ProviderErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "optiplace_engine_provider_errors_total",
			Help: "Total number of provider adapter call failures.",
		}, []string{"provider"}),
		ProviderNodes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "optiplace_engine_provider_nodes",
			Help: "Current number of nodes known per provider.",
		}, []string{"provider", "status"}),

		Custom: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "optiplace_engine_custom_metric",
			Help: "Named values reported through the collector interface.",
		}, []string{"name"}),
	}

	reg.MustRegister(
		m.OptimizeDuration,
		m.OptimizeTotal,
		m.CacheHits,
		m.CacheMisses,
		m.CacheEvictions,
		m.CacheSize,
		m.PluginExecutions,
		m.PluginsEnabled,
		m.PlacementsTotal,
		m.ShardCount,
		m.ScheduleDuration,
		m.CompletionRatio,
		m.ProviderErrors,
		m.ProviderNodes,
		m.Custom,
	)

	return m
}

// Record implements Collector on top of the Prometheus metrics.
func (m *Metrics) Record(duration time.Duration, requestType string, cacheHit bool) {
	cache := "miss"
	if cacheHit {
		cache = "hit"
	}
	m.OptimizeDuration.WithLabelValues(requestType, cache).Observe(duration.Seconds())
}

// RecordMetric implements Collector.
func (m *Metrics) RecordMetric(name string, value float64) {
	m.Custom.WithLabelValues(name).Set(value)
}
