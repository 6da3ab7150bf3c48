// Package metrics exports analytics and serving metrics in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hrygo/habitsense/analytics"
	"github.com/hrygo/habitsense/analytics/model"
)

const namespace = "habitsense"

// Analysis outcome labels.
const (
	StatusSuccess  = "success"
	StatusRejected = "rejected"
	StatusError    = "error"
)

// Exporter records analyses, report cache usage and coach requests.
// It implements analytics.Recorder.
type Exporter struct {
	registry *prometheus.Registry

	// Analysis metrics
	analysisLatency *prometheus.HistogramVec
	analyses        *prometheus.CounterVec
	habitsByLevel   *prometheus.GaugeVec
	patterns        *prometheus.CounterVec
	healthScore     prometheus.Histogram
	spirals         prometheus.Counter

	// Cache metrics
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	// Coach metrics
	coachRequests *prometheus.CounterVec
	coachLatency  *prometheus.HistogramVec
}

// Config configures the exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns the default exporter configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	}
}

// NewExporter creates a new exporter and registers its collectors.
func NewExporter(cfg Config) *Exporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &Exporter{registry: registry}

	e.analysisLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "analysis_duration_seconds",
			Help:      "Analysis latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"status"},
	)

	e.analyses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "analyses_total",
			Help:      "Total number of analyses by outcome",
		},
		[]string{"status"},
	)

	e.habitsByLevel = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "habits",
			Help:      "Habits per risk level in the last successful analysis",
		},
		[]string{"level"},
	)

	e.patterns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "patterns_detected_total",
			Help:      "Total number of reported behavioral patterns",
		},
		[]string{"type", "severity"},
	)

	e.healthScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "health_score",
			Help:      "Distribution of computed health scores",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		},
	)

	e.spirals = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "spirals_detected_total",
			Help:      "Total number of analyses that detected a relapse spiral",
		},
	)

	e.cacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	e.cacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	e.coachRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "coach",
			Name:      "requests_total",
			Help:      "Total number of coach completions",
		},
		[]string{"provider", "status"},
	)

	e.coachLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "coach",
			Name:      "latency_seconds",
			Help:      "Coach completion latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"provider"},
	)

	registry.MustRegister(
		e.analysisLatency,
		e.analyses,
		e.habitsByLevel,
		e.patterns,
		e.healthScore,
		e.spirals,
		e.cacheHits,
		e.cacheMisses,
		e.coachRequests,
		e.coachLatency,
	)

	return e
}

// ObserveAnalysis records one finished analysis.
func (e *Exporter) ObserveAnalysis(report *analytics.Report, elapsed time.Duration, err error) {
	status := StatusSuccess
	switch {
	case analytics.IsInvalidSnapshot(err):
		status = StatusRejected
	case err != nil:
		status = StatusError
	}
	e.analyses.WithLabelValues(status).Inc()
	e.analysisLatency.WithLabelValues(status).Observe(elapsed.Seconds())

	if err != nil || report == nil {
		return
	}

	levels := map[model.RiskLevel]int{model.RiskCritical: 0, model.RiskWarning: 0, model.RiskGood: 0}
	for _, h := range report.Risk.Habits {
		levels[h.Level]++
	}
	for level, n := range levels {
		e.habitsByLevel.WithLabelValues(string(level)).Set(float64(n))
	}
	for _, p := range report.Patterns.Patterns {
		e.patterns.WithLabelValues(string(p.Type), string(p.Severity)).Inc()
	}
	e.healthScore.Observe(float64(report.Strategy.HealthScore.Score))
	if report.Risk.Global.SpiralDetected {
		e.spirals.Inc()
	}
}

// RecordCacheHit records a cache hit.
func (e *Exporter) RecordCacheHit(cacheType string) {
	e.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss.
func (e *Exporter) RecordCacheMiss(cacheType string) {
	e.cacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordCoachRequest records a coach completion.
func (e *Exporter) RecordCoachRequest(provider string, latency time.Duration, success bool) {
	status := StatusSuccess
	if !success {
		status = StatusError
	}
	e.coachRequests.WithLabelValues(provider, status).Inc()
	e.coachLatency.WithLabelValues(provider).Observe(latency.Seconds())
}

// Handler returns the HTTP handler for the metrics endpoint.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// GetRegistry returns the Prometheus registry.
func (e *Exporter) GetRegistry() *prometheus.Registry {
	return e.registry
}
