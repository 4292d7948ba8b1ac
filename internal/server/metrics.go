package server

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics holds the Prometheus instrumentation for the HTTP server.
type Metrics struct {
	registry      *prometheus.Registry
	logger        *zap.Logger
	requestsTotal *prometheus.CounterVec
	requestDur    *prometheus.HistogramVec
}

// NewMetrics creates a Metrics instance with its own registry, so tests
// can construct servers without duplicate-registration panics.
func NewMetrics(logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		logger:   logger,
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docrag_http_requests_total",
				Help: "Total HTTP requests labeled by method, endpoint, and status code.",
			},
			[]string{"method", "endpoint", "status"},
		),
		requestDur: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docrag_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds, labeled by method and endpoint.",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),
	}

	registry.MustRegister(m.requestsTotal, m.requestDur)
	return m
}

// Middleware returns an Echo middleware that records request metrics.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			// c.Path() is the route pattern, not the raw URI, which keeps
			// label cardinality bounded.
			endpoint := c.Path()
			if endpoint == "" {
				endpoint = "/"
			}
			method := c.Request().Method
			status := c.Response().Status

			m.requestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
			m.requestDur.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// Handler returns the /metrics endpoint handler.
func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
