// Package metrics exposes prometheus collectors for model, retrieval and HTTP
// activity. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "workoutai"

type Metrics struct {
	registry      *prometheus.Registry
	modelCalls    *prometheus.CounterVec
	modelLatency  *prometheus.HistogramVec
	attempts      *prometheus.HistogramVec
	searches      *prometheus.CounterVec
	searchLatency prometheus.Histogram
	httpRequests  *prometheus.CounterVec
	corpusSize    prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		modelCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_calls_total",
			Help:      "Generative model calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
		modelLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_call_seconds",
			Help:      "Latency of generative model calls.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
		}, []string{"operation"}),
		attempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conform_attempts",
			Help:      "Model calls needed for a schema-conforming answer.",
			Buckets:   []float64{1, 2},
		}, []string{"operation"}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "similarity_searches_total",
			Help:      "Similarity searches by outcome.",
		}, []string{"outcome"}),
		searchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "similarity_search_seconds",
			Help:      "Latency of similarity searches including the query embedding.",
			Buckets:   prometheus.DefBuckets,
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		corpusSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "corpus_workouts",
			Help:      "Workouts in the loaded similarity index.",
		}),
	}
	m.registry.MustRegister(
		m.modelCalls, m.modelLatency, m.attempts,
		m.searches, m.searchLatency, m.httpRequests, m.corpusSize,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveModelCall(operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.modelCalls.WithLabelValues(operation, outcome).Inc()
	m.modelLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveAttempts(operation string, n int) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(operation).Observe(float64(n))
}

func (m *Metrics) ObserveSearch(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(outcome).Inc()
	m.searchLatency.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveRequest(route string, code int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

func (m *Metrics) SetCorpusSize(n int) {
	if m == nil {
		return
	}
	m.corpusSize.Set(float64(n))
}
