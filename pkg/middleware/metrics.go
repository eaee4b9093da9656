package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTPMetrics records RED metrics for one service. Requests are labelled by
// chi route pattern so /api/v1/addresses/{id} is a single series.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	size     *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// NewHTTPMetrics registers the HTTP collectors for service with reg.
func NewHTTPMetrics(reg prometheus.Registerer, service string) *HTTPMetrics {
	f := promauto.With(prometheus.WrapRegistererWith(prometheus.Labels{"service": service}, reg))
	labels := []string{"method", "route", "status"}
	return &HTTPMetrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests served, by route and status.",
		}, labels),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, labels),
		size: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response body size.",
			Buckets: prometheus.ExponentialBuckets(64, 4, 7),
		}, []string{"method", "route"}),
		inFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "HTTP requests currently being served.",
		}),
	}
}

func (m *HTTPMetrics) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		start := time.Now()
		sw := newStatusWriter(w)
		next.ServeHTTP(sw, r)

		route := routePattern(r)
		status := strconv.Itoa(sw.statusCode)
		m.requests.WithLabelValues(r.Method, route, status).Inc()
		m.duration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		m.size.WithLabelValues(r.Method, route).Observe(float64(sw.bytes))
	})
}

// routePattern is the matched chi pattern, or "unmatched" for 404s and
// requests served outside a chi router.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

var (
	defaultMetricsMu sync.Mutex
	defaultMetrics   = map[string]*HTTPMetrics{}
)

// PrometheusMetrics is HTTPMetrics on the default registry. Routers built
// repeatedly for the same service share one set of collectors.
func PrometheusMetrics(service string) func(http.Handler) http.Handler {
	defaultMetricsMu.Lock()
	defer defaultMetricsMu.Unlock()
	m, ok := defaultMetrics[service]
	if !ok {
		m = NewHTTPMetrics(prometheus.DefaultRegisterer, service)
		defaultMetrics[service] = m
	}
	return m.Handler
}
