// README: Prometheus collectors for the HTTP API, the optimizer and geocoding.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated registry served on /metrics.
	Registry = prometheus.NewRegistry()

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "routetrip_http_requests_total", Help: "HTTP requests by method, route and status."},
		[]string{"method", "route", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "routetrip_http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "route"},
	)

	// Optimizations counts orchestrator outcomes: ok, failed, stale, rejected, skipped.
	Optimizations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "routetrip_optimizations_total", Help: "Route optimizations by outcome."},
		[]string{"outcome"},
	)
	OptimizerLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "routetrip_optimizer_latency_seconds", Help: "Routing provider call latency.", Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30}},
	)

	Geocodes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "routetrip_geocodes_total", Help: "Coordinate resolutions by outcome."},
		[]string{"outcome"},
	)
)

var regOnce sync.Once

// RegisterDefault registers all collectors on Registry once.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests, HTTPDuration, Optimizations, OptimizerLatency, Geocodes)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}
