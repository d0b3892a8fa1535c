package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP-level metrics shared by every handler.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Intake domain counters.
var (
	ApplicationsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "intake_applications_created_total",
		Help: "Applications created.",
	})

	ApplicationsSubmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "intake_applications_submitted_total",
		Help: "Applications submitted.",
	})

	DocumentsUploaded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "intake_documents_uploaded_total",
		Help: "Documents uploaded to blob storage.",
	})

	MigrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_draft_migrations_total",
			Help: "Anonymous draft migrations by outcome.",
		},
		[]string{"outcome"},
	)
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		ApplicationsCreated, ApplicationsSubmitted, DocumentsUploaded, MigrationsTotal,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument wraps a handler with RPS/latency/in-flight measurement.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// CanonicalPath collapses resource identifiers so metric label cardinality
// stays bounded. Query strings are stripped.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	segs := strings.Split(path, "/")
	for i := 1; i < len(segs); i++ {
		prev := segs[i-1]
		if segs[i] == "" {
			continue
		}
		switch prev {
		case "applications", "documents":
			segs[i] = ":id"
		case "sections":
			segs[i] = ":key"
		case "files":
			// Everything under /files/ is an opaque object path.
			return strings.Join(segs[:i], "/") + "/:path"
		}
	}
	return strings.Join(segs, "/")
}

// statusWriter captures the response status code.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
