// Package metrics exports dispatcher activity to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rexliu/motoshop/pkg/ipc"
)

const namespace = "motoshop"

// Collector implements ipc.Observer.
type Collector struct {
	registry    *prometheus.Registry
	connections prometheus.Gauge
	accepted    prometheus.Counter
	requests    *prometheus.CounterVec
	durations   *prometheus.HistogramVec
}

var _ ipc.Observer = (*Collector)(nil)

// New registers the dispatcher metrics plus Go runtime and process collectors
// on a private registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Client connections currently served.",
		}),
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_accepted_total",
			Help:      "Client connections accepted since start.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Requests handled, by kind and response status.",
		}, []string{"kind", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time spent handling a request.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
	}
	c.registry.MustRegister(
		c.connections, c.accepted, c.requests, c.durations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) ConnOpened() {
	c.accepted.Inc()
	c.connections.Inc()
}

func (c *Collector) ConnClosed() { c.connections.Dec() }

func (c *Collector) RequestHandled(kind string, status ipc.Status, d time.Duration) {
	c.requests.WithLabelValues(kind, string(status)).Inc()
	c.durations.WithLabelValues(kind).Observe(d.Seconds())
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
