// Package metrics holds the Prometheus collectors of linkup: request
// accounting for the HTTP surface and the counters of the account core.
// Everything registers on the default registry served at /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "linkup"

// HTTP surface
var (
	requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})

	latency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Time to first byte of the response body plus handler time",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"method", "route"})

	inFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "Requests currently being served, open websocket upgrades included",
	})
)

// Account core
var (
	// AccountTransitions counts successful lifecycle transitions by name (register, activate, login, ...).
	AccountTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "account",
		Name:      "transitions_total",
		Help:      "Successful account lifecycle transitions",
	}, []string{"transition"})

	// Compensations counts soft-deletes rolled back after a failed dispatch.
	Compensations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "account",
		Name:      "soft_delete_compensations_total",
		Help:      "Soft-deletes reverted because the recovery mail could not be sent",
	})

	// GateRejections counts session gate rejections by error code.
	GateRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gate",
		Name:      "rejections_total",
		Help:      "Requests rejected by the session gate",
	}, []string{"code"})

	notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notify",
		Name:      "dispatches_total",
		Help:      "Notification dispatches by kind and result",
	}, []string{"kind", "result"})

	SweepPurged = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sweep",
		Name:      "purged_accounts_total",
		Help:      "Accounts hard-deleted after the recovery window elapsed",
	})

	SweepRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sweep",
		Name:      "runs_total",
		Help:      "Sweep runs by result",
	}, []string{"result"})

	PresenceConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "presence",
		Name:      "connections",
		Help:      "Accounts currently registered in the presence registry",
	})
)

func ObserveNotification(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	notifications.WithLabelValues(kind, result).Inc()
}

// statusRecorder remembers the first status written. A handler that only
// calls Write answers 200.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the hijacker behind the recorder.
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

func (s *statusRecorder) code() string {
	if s.status == 0 {
		return strconv.Itoa(http.StatusOK)
	}
	return strconv.Itoa(s.status)
}

// route labels a request by its chi pattern; unmatched requests share one label
// so scanners can't blow up cardinality.
func route(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// Middleware records request count, latency and concurrency per route.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inFlight.Inc()
		defer inFlight.Dec()

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		name := route(r)
		requests.WithLabelValues(r.Method, name, rec.code()).Inc()
		latency.WithLabelValues(r.Method, name).Observe(time.Since(start).Seconds())
	})
}
