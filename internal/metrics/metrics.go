// Package metrics provides Prometheus metrics for the class loader.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch outcomes used as the "outcome" label.
const (
	OutcomeLoaded   = "loaded"
	OutcomeErrored  = "errored"
	OutcomeMismatch = "mismatch"
)

// Collector holds the loader metrics of one engine. A nil *Collector is
// valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	FetchesTotal   *prometheus.CounterVec
	FetchDuration  prometheus.Histogram
	FetchesFlying  prometheus.Gauge
	ClassesDefined prometheus.Counter
	QueueDepth     prometheus.Gauge
	CyclesDetected prometheus.Counter
}

// New creates a collector on a fresh registry, so several engines (and
// tests) never collide.
func New() *Collector {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry creates a collector registered on reg.
func NewWithRegistry(reg *prometheus.Registry) *Collector {
	f := promauto.With(reg)
	return &Collector{
		registry: reg,
		FetchesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "classkit",
				Subsystem: "loader",
				Name:      "fetches_total",
				Help:      "Resource fetches by outcome.",
			},
			[]string{"outcome"},
		),
		FetchDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "classkit",
				Subsystem: "loader",
				Name:      "fetch_duration_seconds",
				Help:      "Resource fetch duration in seconds.",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
		),
		FetchesFlying: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "classkit",
				Subsystem: "loader",
				Name:      "fetches_in_flight",
				Help:      "Resource fetches currently outstanding.",
			},
		),
		ClassesDefined: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: "classkit",
				Subsystem: "registry",
				Name:      "classes_defined_total",
				Help:      "Classes fully constructed and registered.",
			},
		),
		QueueDepth: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "classkit",
				Subsystem: "loader",
				Name:      "queue_depth",
				Help:      "Callbacks waiting for dependencies.",
			},
		),
		CyclesDetected: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: "classkit",
				Subsystem: "loader",
				Name:      "cycles_detected_total",
				Help:      "Circular dependencies detected before fetching.",
			},
		),
	}
}

// Registry returns the registry the collectors live on.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// FetchStarted records a fetch being issued.
func (c *Collector) FetchStarted() {
	if c == nil {
		return
	}
	c.FetchesFlying.Inc()
}

// FetchFinished records the outcome of a fetch.
func (c *Collector) FetchFinished(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.FetchesFlying.Dec()
	c.FetchesTotal.WithLabelValues(outcome).Inc()
	c.FetchDuration.Observe(d.Seconds())
}

// Mismatch records a resource that did not declare its class.
func (c *Collector) Mismatch() {
	if c == nil {
		return
	}
	c.FetchesTotal.WithLabelValues(OutcomeMismatch).Inc()
}

// ClassDefined records a registered class.
func (c *Collector) ClassDefined() {
	if c == nil {
		return
	}
	c.ClassesDefined.Inc()
}

// SetQueueDepth records the current number of waiting callbacks.
func (c *Collector) SetQueueDepth(n int) {
	if c == nil {
		return
	}
	c.QueueDepth.Set(float64(n))
}

// CycleDetected records a proactive cycle abort.
func (c *Collector) CycleDetected() {
	if c == nil {
		return
	}
	c.CyclesDetected.Inc()
}
