package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "marketplace",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "marketplace",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	tradeExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: "trading",
			Name:      "executions_total",
			Help:      "Total number of trade executions processed by the worker pool.",
		},
		[]string{"operation", "status"},
	)

	tradeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "marketplace",
			Subsystem: "trading",
			Name:      "execution_duration_seconds",
			Help:      "Duration of trade executions.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation"},
	)

	tradeQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "marketplace",
			Subsystem: "trading",
			Name:      "queue_depth",
			Help:      "Number of trade jobs waiting in the worker pool queue.",
		},
	)

	bidsSwept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: "bids",
			Name:      "expired_total",
			Help:      "Total number of bids transitioned to expired by the sweeper.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		tradeExecutions,
		tradeDuration,
		tradeQueueDepth,
		bidsSwept,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordTradeExecution records metrics for a worker pool trade execution.
func RecordTradeExecution(operation, status string, duration time.Duration) {
	if operation == "" {
		operation = "unknown"
	}
	if duration <= 0 {
		duration = time.Millisecond
	}
	tradeExecutions.WithLabelValues(operation, status).Inc()
	tradeDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetTradeQueueDepth records the current trade queue backlog.
func SetTradeQueueDepth(depth int) {
	tradeQueueDepth.Set(float64(depth))
}

// RecordExpiredBids counts bids expired by the sweeper.
func RecordExpiredBids(count int) {
	if count > 0 {
		bidsSwept.Add(float64(count))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses identifier path segments so metric labels stay
// low-cardinality.
func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if parts[0] != "api" {
		return "/" + parts[0]
	}
	if len(parts) == 1 {
		return "/api"
	}
	if len(parts) <= 2 {
		return "/api/" + parts[1]
	}
	// /api/notifications/mark-read/{id} -> /api/notifications/mark-read/:id
	if parts[2] == "mark-read" {
		return "/api/" + parts[1] + "/mark-read/:id"
	}
	// Fixed sub-resources, not identifiers.
	if parts[2] == "stream" || parts[2] == "mark-all-read" {
		return "/api/" + parts[1] + "/" + parts[2]
	}
	// /api/bids/{id}/accept -> /api/bids/:id/accept
	if len(parts) >= 4 {
		return "/api/" + parts[1] + "/:id/" + parts[3]
	}
	return "/api/" + parts[1] + "/:id"
}
