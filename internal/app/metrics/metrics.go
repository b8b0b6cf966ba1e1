// Package metrics exposes the Prometheus collectors for the access layer.
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
			Namespace: "access_layer",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "access_layer",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "access_layer",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	gateDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "access_layer",
			Subsystem: "gate",
			Name:      "decisions_total",
			Help:      "Total number of operation gate decisions.",
		},
		[]string{"operation", "outcome"},
	)

	tokensSpent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "access_layer",
			Subsystem: "ledger",
			Name:      "tokens_spent_total",
			Help:      "Total tokens debited per operation.",
		},
		[]string{"operation"},
	)

	purchaseRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "access_layer",
			Subsystem: "purchase",
			Name:      "runs_total",
			Help:      "Total number of purchase flow completions.",
		},
		[]string{"kind", "state"},
	)

	purchaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "access_layer",
			Subsystem: "purchase",
			Name:      "run_duration_seconds",
			Help:      "Duration of purchase flow runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"kind"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		gateDecisions,
		tokensSpent,
		purchaseRuns,
		purchaseDuration,
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

// RecordGateDecision records an authorization outcome for an operation.
func RecordGateDecision(operation, outcome string) {
	if operation == "" {
		operation = "unknown"
	}
	gateDecisions.WithLabelValues(operation, outcome).Inc()
}

// RecordTokensSpent records a successful debit for an operation.
func RecordTokensSpent(operation string, amount int64) {
	if operation == "" {
		operation = "unknown"
	}
	tokensSpent.WithLabelValues(operation).Add(float64(amount))
}

// RecordPurchaseRun records a purchase flow completion.
func RecordPurchaseRun(kind, state string, duration time.Duration) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	purchaseRuns.WithLabelValues(kind, state).Inc()
	purchaseDuration.WithLabelValues(kind).Observe(duration.Seconds())
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
	if parts[1] != "wallets" {
		return "/api/" + parts[1]
	}
	if len(parts) == 2 {
		return "/api/wallets"
	}
	if len(parts) == 3 {
		return "/api/wallets/:wallet"
	}
	return "/api/wallets/:wallet/" + parts[3]
}
