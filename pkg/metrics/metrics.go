package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/jordanlanch/rivalscope/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics on a dedicated registry
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Pipeline metrics
	ScrapesTotal   *prometheus.CounterVec
	AnalysesTotal  *prometheus.CounterVec
	EngineDuration *prometheus.HistogramVec

	// Database metrics
	DBConnections *prometheus.GaugeVec

	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		HTTPResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 5000, 10000, 50000, 100000, 500000, 1000000},
			},
			[]string{"method", "path"},
		),

		ScrapesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "competitor_scrapes_total",
				Help: "Competitor scrape attempts by final status",
			},
			[]string{"status"}, // COMPLETED, FAILED
		),
		AnalysesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "competitor_analyses_total",
				Help: "Analysis runs by final status",
			},
			[]string{"status"}, // COMPLETED, FAILED
		),
		EngineDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scoring_engine_duration_seconds",
				Help:    "Scoring engine call latency in seconds",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
			},
			[]string{"outcome"}, // ok, error
		),

		DBConnections: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "db_connections",
				Help: "Database pool connections by state",
			},
			[]string{"state"}, // in_use, idle
		),

		CacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache"},
		),
		CacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache"},
		),
	}
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware creates an Echo middleware for Prometheus metrics
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			err := next(c)
			if err != nil {
				// let echo render the error so the recorded status is the final one
				c.Error(err)
			}

			// route pattern, not the raw path (e.g. /api/v1/analyses/:id)
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			status := strconv.Itoa(c.Response().Status)

			m.HTTPRequestsTotal.WithLabelValues(req.Method, path, status).Inc()
			m.HTTPRequestDuration.WithLabelValues(req.Method, path, status).Observe(time.Since(start).Seconds())
			m.HTTPResponseSize.WithLabelValues(req.Method, path).Observe(float64(c.Response().Size))

			return nil
		}
	}
}

// ScrapeFinished counts a finished competitor scrape
func (m *Metrics) ScrapeFinished(status models.ScrapeStatus) {
	m.ScrapesTotal.WithLabelValues(string(status)).Inc()
}

// AnalysisFinished counts a finished analysis run
func (m *Metrics) AnalysisFinished(status models.AnalysisStatus) {
	m.AnalysesTotal.WithLabelValues(string(status)).Inc()
}

// EngineCall records the latency of one scoring engine call
func (m *Metrics) EngineCall(d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.EngineDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// CacheHit increments the cache hits counter
func (m *Metrics) CacheHit(cache string) {
	m.CacheHits.WithLabelValues(cache).Inc()
}

// CacheMiss increments the cache misses counter
func (m *Metrics) CacheMiss(cache string) {
	m.CacheMisses.WithLabelValues(cache).Inc()
}

// UpdateDBConnections sets the pool gauges
func (m *Metrics) UpdateDBConnections(inUse, idle int) {
	m.DBConnections.WithLabelValues("in_use").Set(float64(inUse))
	m.DBConnections.WithLabelValues("idle").Set(float64(idle))
}
