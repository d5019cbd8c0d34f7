package metrics

import (
	"net/http"

	"motorisk/internal/risk"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "motorisk"

// Metrics exposes scoring counters in the Prometheus text format.
// Every instance owns its registry, so several can live in one process.
type Metrics struct {
	registry    *prometheus.Registry
	assessments *prometheus.CounterVec
	failures    prometheus.Counter
	scores      prometheus.Histogram
	reloads     *prometheus.CounterVec
}

// Observe counts a successful assessment by level and records its score.
func (m *Metrics) Observe(a risk.Assessment) {
	m.assessments.WithLabelValues(string(a.RiskLevel)).Inc()
	m.scores.Observe(a.RiskScore)
}

// Failed counts a listing that could not be scored.
func (m *Metrics) Failed() {
	m.failures.Inc()
}

// Reloaded counts a model reload attempt.
func (m *Metrics) Reloaded(err error) {
	result := "ok"
	if err != nil {
		result = "failed"
	}
	m.reloads.WithLabelValues(result).Inc()
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		assessments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assessments_total",
			Help:      "Scored listings by risk level.",
		}, []string{"level"}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assessment_failures_total",
			Help:      "Listings the model could not price.",
		}),
		scores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "risk_score",
			Help:      "Distribution of risk scores.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_reloads_total",
			Help:      "Model reload attempts by result.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(
		m.assessments,
		m.failures,
		m.scores,
		m.reloads,
		collectors.NewGoCollector(),
	)

	return m
}
