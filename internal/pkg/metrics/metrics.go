package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nearbus",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "nearbus",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	// Provider metrics
	ProviderCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nearbus",
		Subsystem: "provider",
		Name:      "calls_total",
		Help:      "Total external provider calls by provider and outcome",
	}, []string{"provider", "outcome"})

	ProviderBudgetDenied = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "nearbus",
		Subsystem: "provider",
		Name:      "budget_denied_total",
		Help:      "Total provider calls denied by the daily budget",
	})

	// Cache metrics
	GeocodeCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nearbus",
		Subsystem: "geocode",
		Name:      "cache_hits_total",
		Help:      "Total geocode cache hits by lookup kind",
	}, []string{"kind"})

	PolylineCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "nearbus",
		Subsystem: "polyline",
		Name:      "cache_hits_total",
		Help:      "Total polyline cache hits",
	})

	PolylineCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "nearbus",
		Subsystem: "polyline",
		Name:      "cache_misses_total",
		Help:      "Total polyline cache misses (expired or never built)",
	})

	RebuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "nearbus",
		Subsystem: "polyline",
		Name:      "rebuild_duration_seconds",
		Help:      "Duration of full polyline rebuild sweeps",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})

	RebuildFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "nearbus",
		Subsystem: "polyline",
		Name:      "rebuild_failures_total",
		Help:      "Total per-route failures during rebuild sweeps",
	})

	// Governor metrics
	GovernorRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nearbus",
		Subsystem: "governor",
		Name:      "rejections_total",
		Help:      "Total requests rejected by the usage governor",
	}, []string{"limit"})

	// Proximity metrics
	ProximityChecks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "nearbus",
		Subsystem: "proximity",
		Name:      "checks_total",
		Help:      "Total proximity checks performed",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)

		return err
	}
}

// Handler returns a Fiber handler serving the Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}
