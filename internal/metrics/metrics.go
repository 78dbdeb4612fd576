// Package metrics exposes Prometheus instrumentation on a private registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors for one server instance
type Metrics struct {
	registry *prometheus.Registry

	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	pastesCreated prometheus.Counter
	pasteViews    prometheus.Counter
	pastesSwept   prometheus.Counter
	adminAttempts *prometheus.CounterVec
	storeFailures *prometheus.CounterVec
}

// New registers all collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codesnap",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "codesnap",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		pastesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "codesnap",
			Name:      "pastes_created_total",
			Help:      "Pastes created.",
		}),
		pasteViews: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "codesnap",
			Name:      "paste_views_total",
			Help:      "Successful paste reads.",
		}),
		pastesSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "codesnap",
			Name:      "pastes_swept_total",
			Help:      "Expired pastes removed by the background sweep.",
		}),
		adminAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codesnap",
			Name:      "admin_auth_attempts_total",
			Help:      "Admin authentication attempts by result.",
		}, []string{"result"}),
		storeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codesnap",
			Name:      "store_errors_total",
			Help:      "Backend errors by store operation.",
		}, []string{"op"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.duration,
		m.pastesCreated,
		m.pasteViews,
		m.pastesSwept,
		m.adminAttempts,
		m.storeFailures,
	)
	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request counts and latency keyed by the route template
func (m *Metrics) Middleware() gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		m.requests.WithLabelValues(route, method, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
	}
}

// PasteCreated counts a new paste
func (m *Metrics) PasteCreated() {
	if m != nil {
		m.pastesCreated.Inc()
	}
}

// PasteViewed counts a successful read
func (m *Metrics) PasteViewed() {
	if m != nil {
		m.pasteViews.Inc()
	}
}

// PastesSwept adds the number of rows removed by a sweep
func (m *Metrics) PastesSwept(n int64) {
	if m != nil && n > 0 {
		m.pastesSwept.Add(float64(n))
	}
}

// AdminAttempt counts an admin authentication by outcome
func (m *Metrics) AdminAttempt(ok bool) {
	if m == nil {
		return
	}
	result := "denied"
	if ok {
		result = "granted"
	}
	m.adminAttempts.WithLabelValues(result).Inc()
}

// StoreError counts a backend failure for op
func (m *Metrics) StoreError(op string) {
	if m != nil {
		m.storeFailures.WithLabelValues(op).Inc()
	}
}
