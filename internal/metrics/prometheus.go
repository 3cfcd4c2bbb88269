// Package metrics exposes request and webhook counters in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// LatencyBuckets are the request_latency_ms upper bounds; +Inf is implicit.
var LatencyBuckets = []float64{100, 500}

// Collector owns a private registry so each server (and each test) gets
// isolated counters. It is safe for concurrent use.
type Collector struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	webhookRequests *prometheus.CounterVec
	latency         prometheus.Histogram
}

// New creates a Collector with all metrics registered.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests by route and status code",
			},
			[]string{"path", "status"},
		),
		webhookRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhook_requests_total",
				Help: "Total webhook deliveries by outcome",
			},
			[]string{"result"},
		),
		latency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "request_latency_ms",
				Help:    "HTTP request latency in milliseconds",
				Buckets: LatencyBuckets,
			},
		),
	}
	c.registry.MustRegister(c.httpRequests, c.webhookRequests, c.latency)
	return c
}

// ObserveHTTP records one finished request. path should be the route
// pattern, not the raw URL, to keep label cardinality bounded.
func (c *Collector) ObserveHTTP(path string, status int, elapsed time.Duration) {
	c.httpRequests.WithLabelValues(path, strconv.Itoa(status)).Inc()
	c.latency.Observe(float64(elapsed) / float64(time.Millisecond))
}

// ObserveWebhook records one finished webhook delivery.
func (c *Collector) ObserveWebhook(result string) {
	c.webhookRequests.WithLabelValues(result).Inc()
}

// Registry exposes the underlying registry for tests and extra collectors.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the text exposition for this collector only.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
