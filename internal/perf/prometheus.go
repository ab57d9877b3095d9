package perf

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder exports operation latency and counts.
type PrometheusRecorder struct {
	duration   *prometheus.HistogramVec
	operations *prometheus.CounterVec
	results    *prometheus.HistogramVec
}

// NewPrometheusRecorder registers the search collectors with reg (the
// default registerer when nil).
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "catalog_search_duration_seconds",
			Help:    "Search and suggestion latency in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"operation", "cache"}),
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_search_operations_total",
			Help: "Search and suggestion operations by latency classification",
		}, []string{"operation", "classification", "cache"}),
		results: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "catalog_search_results",
			Help:    "Number of results returned per operation",
			Buckets: []float64{0, 1, 5, 10, 20, 50, 100, 250, 500, 1000},
		}, []string{"operation"}),
	}
}

// Record observes m.
func (r *PrometheusRecorder) Record(_ context.Context, m Metric) error {
	cache := cacheLabel(m.CacheHit)
	r.duration.WithLabelValues(m.Operation, cache).Observe(m.Duration.Seconds())
	r.operations.WithLabelValues(m.Operation, string(m.Classification), cache).Inc()
	r.results.WithLabelValues(m.Operation).Observe(float64(m.ResultCount))
	return nil
}

func cacheLabel(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}
