// Package metrics exposes prometheus instrumentation for the market engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// EngineMetrics counts workflow transitions and side-effect outcomes.
type EngineMetrics struct {
	Transitions    *prometheus.CounterVec
	EffectFailures *prometheus.CounterVec
	FanoutPublish  *prometheus.CounterVec
	TransitionMS   *prometheus.HistogramVec
}

// NewEngineMetrics registers engine metrics on the given registerer.
// A nil registerer falls back to the default prometheus registry.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "market",
		Name:      "transitions_total",
		Help:      "Total number of requested workflow transitions.",
	}, []string{"entity", "outcome"})
	effectFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "market",
		Name:      "effect_failures_total",
		Help:      "Total number of post-commit side effects that failed.",
	}, []string{"effect"})
	fanout := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "market",
		Name:      "fanout_publish_total",
		Help:      "Total number of events published to realtime channels.",
	}, []string{"event"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "market",
		Name:      "transition_duration_ms",
		Help:      "Workflow transition latency in milliseconds.",
		Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	}, []string{"entity"})

	reg.MustRegister(transitions, effectFailures, fanout, latency)
	return &EngineMetrics{
		Transitions:    transitions,
		EffectFailures: effectFailures,
		FanoutPublish:  fanout,
		TransitionMS:   latency,
	}
}

// Handler returns the prometheus scrape handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns a scrape handler bound to one registry. Servers that own
// their registry use this to keep scrapes isolated from the process default.
func HandlerFor(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
