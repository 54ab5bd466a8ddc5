package metrics

import (
	"net/http"
	"time"

	"market-agent/src/helpers"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "market_agent"

// Collector groups the service metrics. A nil *Collector records nothing,
// so components can be built without one in tests.
type Collector struct {
	registry *prometheus.Registry

	runs        *prometheus.CounterVec
	runDuration prometheus.Histogram
	invocations *prometheus.CounterVec
	published   *prometheus.CounterVec
	subscribers prometheus.Gauge
}

// -----------------------------------------------------------------------------

// NewCollector registers every metric on a fresh registry
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Agent runs by outcome (ok or an error kind).",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of agent runs.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capability_invocations_total",
			Help:      "Capability invocations by capability and outcome.",
		}, []string{"capability", "outcome"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_events_published_total",
			Help:      "Relay events published by kind.",
		}, []string{"kind"}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "relay_subscribers",
			Help:      "Websocket clients currently connected to the hub.",
		}),
	}

	c.registry.MustRegister(
		c.runs,
		c.runDuration,
		c.invocations,
		c.published,
		c.subscribers,
		prometheus.NewGoCollector(),
	)
	return c
}

// -----------------------------------------------------------------------------

// Handler serves the registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// -----------------------------------------------------------------------------

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return helpers.ErrorKind(err)
}

func (c *Collector) ObserveRun(started time.Time, err error) {
	if c == nil {
		return
	}
	c.runs.WithLabelValues(outcome(err)).Inc()
	c.runDuration.Observe(time.Since(started).Seconds())
}

func (c *Collector) ObserveInvocation(capability string, err error) {
	if c == nil {
		return
	}
	c.invocations.WithLabelValues(capability, outcome(err)).Inc()
}

func (c *Collector) ObservePublish(kind string) {
	if c == nil {
		return
	}
	c.published.WithLabelValues(kind).Inc()
}

func (c *Collector) SetSubscribers(n int) {
	if c == nil {
		return
	}
	c.subscribers.Set(float64(n))
}
