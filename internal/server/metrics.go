package server

import (
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// httpMetrics holds the Prometheus instruments for the HTTP surface,
// exported at GET /metrics.
type httpMetrics struct {
	requestsTotal *prometheus.CounterVec
	requestDur    *prometheus.HistogramVec
}

var (
	metricsOnce   sync.Once
	sharedMetrics *httpMetrics
)

// newHTTPMetrics returns the process-wide instruments. Registration with the
// default registry must happen once even when multiple servers are built.
func newHTTPMetrics() *httpMetrics {
	metricsOnce.Do(func() {
		sharedMetrics = registerHTTPMetrics()
	})
	return sharedMetrics
}

func registerHTTPMetrics() *httpMetrics {
	return &httpMetrics{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentd",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests by method, route, and status code.",
		}, []string{"method", "route", "status"}),
		requestDur: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agentd",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds by method and route.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
	}
}

// observe records one completed request. The route template is used rather
// than the raw URI to keep label cardinality bounded.
func (m *httpMetrics) observe(c echo.Context, duration time.Duration) {
	route := c.Path()
	if route == "" {
		route = "unmatched"
	}
	method := c.Request().Method
	m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Response().Status)).Inc()
	m.requestDur.WithLabelValues(method, route).Observe(duration.Seconds())
}
