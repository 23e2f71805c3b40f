package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all custom Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Search metrics
	SearchRequests *prometheus.CounterVec
	SearchLatency  prometheus.Histogram

	// Recommendation metrics
	Recommendations     *prometheus.CounterVec
	RecommendationSize  prometheus.Histogram
	FallbackWidenings   prometheus.Counter
	HistoryClears       *prometheus.CounterVec
	ClassifierAvailable prometheus.Gauge
	ClassifierFallbacks prometheus.Counter
}

var globalMetrics *Metrics

// NewMetrics registers the application metrics with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Outbound searches by outcome: ok, empty, error
		SearchRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "moodtunes_search_requests_total",
			Help: "Total number of outbound search requests by outcome",
		}, []string{"outcome"}),

		SearchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "moodtunes_search_request_duration_seconds",
			Help:    "Outbound search latency in seconds, excluding rate limiter wait",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
		}),

		// Recommendation batches by mood
		Recommendations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "moodtunes_recommendations_total",
			Help: "Total number of recommendation batches by mood",
		}, []string{"mood"}),

		RecommendationSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "moodtunes_recommendation_videos",
			Help:    "Number of videos returned per recommendation batch",
			Buckets: []float64{0, 1, 3, 5, 10, 15, 20, 30, 50},
		}),

		FallbackWidenings: factory.NewCounter(prometheus.CounterOpts{
			Name: "moodtunes_fallback_widenings_total",
			Help: "Number of batches that re-ran queries with duplicates allowed",
		}),

		// History clears by reason: session, refresh, empty_batch
		HistoryClears: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "moodtunes_history_clears_total",
			Help: "Total number of history clears by reason",
		}, []string{"reason"}),

		ClassifierAvailable: factory.NewGauge(prometheus.GaugeOpts{
			Name: "moodtunes_classifier_available",
			Help: "1 when the emotion classifier answered its last health check",
		}),

		ClassifierFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "moodtunes_classifier_fallbacks_total",
			Help: "Number of classifications that fell back to the neutral mood",
		}),
	}
}

// InitMetrics registers the metrics with the default registry
func InitMetrics() *Metrics {
	globalMetrics = NewMetrics(prometheus.DefaultRegisterer)
	return globalMetrics
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	return globalMetrics
}

// RecordSearch records the outcome and latency of one outbound search
func (m *Metrics) RecordSearch(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.SearchRequests.WithLabelValues(outcome).Inc()
	m.SearchLatency.Observe(seconds)
}

// RecordRecommendation records a finished batch
func (m *Metrics) RecordRecommendation(mood string, videos int, fallbackUsed bool) {
	if m == nil {
		return
	}
	m.Recommendations.WithLabelValues(mood).Inc()
	m.RecommendationSize.Observe(float64(videos))
	if fallbackUsed {
		m.FallbackWidenings.Inc()
	}
}

// RecordHistoryClear records an explicit or automatic history reset
func (m *Metrics) RecordHistoryClear(reason string) {
	if m == nil {
		return
	}
	m.HistoryClears.WithLabelValues(reason).Inc()
}

// SetClassifierAvailable mirrors the classifier health state
func (m *Metrics) SetClassifierAvailable(available bool) {
	if m == nil {
		return
	}
	if available {
		m.ClassifierAvailable.Set(1)
	} else {
		m.ClassifierAvailable.Set(0)
	}
}

// RecordClassifierFallback records a neutral fallback classification
func (m *Metrics) RecordClassifierFallback() {
	if m == nil {
		return
	}
	m.ClassifierFallbacks.Inc()
}
