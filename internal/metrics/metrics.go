package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insight_hub_http_requests_total",
			Help: "Total number of HTTP requests by method, route, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "insight_hub_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds by method and route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	uploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insight_hub_uploads_total",
			Help: "Total number of dataset uploads by outcome.",
		},
		[]string{"outcome"},
	)
)

// RecordUpload counts one upload attempt with the given outcome
// ("ok", "validation_error", "parse_error", "upstream_error", "error").
func RecordUpload(outcome string) {
	uploadsTotal.WithLabelValues(outcome).Inc()
}

// SessionSource is the subset of the session needed to collect dashboard
// metrics on each scrape.
type SessionSource interface {
	StatusCounts() map[string]int
	DatasetCount() int
}

// sessionCollector is a custom Prometheus collector that inspects the live
// session on each scrape to report the current view's status breakdown and
// the history depth.
type sessionCollector struct {
	session      SessionSource
	statusDesc   *prometheus.Desc
	datasetsDesc *prometheus.Desc
}

func (c *sessionCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.statusDesc
	ch <- c.datasetsDesc
}

func (c *sessionCollector) Collect(ch chan<- prometheus.Metric) {
	for status, n := range c.session.StatusCounts() {
		ch <- prometheus.MustNewConstMetric(
			c.statusDesc,
			prometheus.GaugeValue,
			float64(n),
			status,
		)
	}
	ch <- prometheus.MustNewConstMetric(
		c.datasetsDesc,
		prometheus.GaugeValue,
		float64(c.session.DatasetCount()),
	)
}

// Register registers all metrics with the default Prometheus registry.
// Call once at startup after the session is initialised.
func Register(session SessionSource) {
	prometheus.MustRegister(
		// Standard Go runtime and process metrics
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),

		// HTTP service metrics
		httpRequestsTotal,
		httpRequestDuration,
		uploadsTotal,

		// Application metrics
		&sessionCollector{
			session: session,
			statusDesc: prometheus.NewDesc(
				"insight_hub_equipment_total",
				"Equipment records in the current view, partitioned by status.",
				[]string{"status"},
				nil,
			),
			datasetsDesc: prometheus.NewDesc(
				"insight_hub_datasets_total",
				"Number of upload-history entries in the session.",
				nil,
				nil,
			),
		},
	)
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// responseWriter wraps http.ResponseWriter to capture the response status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware wraps an http.Handler to record HTTP metrics.
// pattern should be the route pattern string (e.g. "/api/v1/datasets/{id}")
// so the path label has bounded cardinality.
func Middleware(pattern string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			status := strconv.Itoa(rw.status)
			httpRequestsTotal.WithLabelValues(r.Method, pattern, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
		}()

		next.ServeHTTP(rw, r)
	})
}
