// Package metrics exposes Prometheus instrumentation for key operations and
// the REST API.
package metrics

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace of every metric in this package.
	Namespace = "pqhybrid"

	LabelOperation = "operation"
	LabelAlgorithm = "algorithm"
	LabelStatus    = "status"
	LabelReason    = "reason"
	LabelMethod    = "method"
	LabelRoute     = "route"
	LabelCode      = "status_code"

	StatusSuccess = "success"
	StatusError   = "error"

	OpGenerate    = "generate"
	OpImport      = "import"
	OpRelease     = "release"
	OpSign        = "sign"
	OpVerify      = "verify"
	OpEncapsulate = "encapsulate"
	OpDecapsulate = "decapsulate"
)

var (
	// OperationsTotal counts key operations by operation, algorithm and status.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operations_total",
			Help:      "Total number of key operations by operation, algorithm and status",
		},
		[]string{LabelOperation, LabelAlgorithm, LabelStatus},
	)

	// OperationDuration observes key operation latency. SLH-DSA signing
	// pushes the upper buckets.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of key operations in seconds",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{LabelOperation, LabelAlgorithm},
	)

	// FailuresTotal counts failed operations by reason (format, verification, engine, error).
	FailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "failures_total",
			Help:      "Total number of failed key operations by reason",
		},
		[]string{LabelOperation, LabelReason},
	)

	// KeysLoaded is the number of keys held by the server keystore.
	KeysLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "keys_loaded",
			Help:      "Number of keys held by the keystore",
		},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route and status code",
		},
		[]string{LabelMethod, LabelRoute, LabelCode},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelMethod, LabelRoute},
	)

	enabled atomic.Bool
)

func init() {
	enabled.Store(true)
}

// Enable turns metric recording on or off.
func Enable(on bool) { enabled.Store(on) }

// IsEnabled reports whether metrics are recorded.
func IsEnabled() bool { return enabled.Load() }

// RecordOperation records one key operation. A non-empty reason is counted
// as a failure.
func RecordOperation(operation, algorithm, reason string, duration time.Duration) {
	if !enabled.Load() {
		return
	}
	status := StatusSuccess
	if reason != "" {
		status = StatusError
		FailuresTotal.WithLabelValues(operation, reason).Inc()
	}
	OperationsTotal.WithLabelValues(operation, algorithm, status).Inc()
	OperationDuration.WithLabelValues(operation, algorithm).Observe(duration.Seconds())
}

// SetKeysLoaded sets the keystore size.
func SetKeysLoaded(n int) {
	if !enabled.Load() {
		return
	}
	KeysLoaded.Set(float64(n))
}

// RecordHTTPRequest records a served HTTP request.
func RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	if !enabled.Load() {
		return
	}
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// HTTPMiddleware records request counts and latency. Requests are labelled
// with the chi route pattern so path parameters do not explode cardinality.
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !enabled.Load() {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		RecordHTTPRequest(r.Method, route, ww.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wrote {
		w.status = code
		w.wrote = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wrote = true
	return w.ResponseWriter.Write(b)
}
