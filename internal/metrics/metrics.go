// Package metrics exposes Prometheus collectors for the capture service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	capturesTotal           *prometheus.CounterVec
	captureDurationSeconds  *prometheus.HistogramVec
	sessionsAcquiredTotal   *prometheus.CounterVec
	tasksTotal              *prometheus.CounterVec
	httpRequestsTotal       *prometheus.CounterVec
	httpRequestDurationSecs *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		capturesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snapmark_captures_total",
				Help: "Total number of capture attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)
		captureDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "snapmark_capture_duration_seconds",
				Help:    "Histogram of capture latencies, labeled by outcome.",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60},
			},
			[]string{"outcome"},
		)
		sessionsAcquiredTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snapmark_sessions_acquired_total",
				Help: "Total browser session acquisitions, labeled by mode (reused or launched).",
			},
			[]string{"mode"},
		)
		tasksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snapmark_tasks_total",
				Help: "Total queue tasks processed, labeled by result (ack, retry, duplicate).",
			},
			[]string{"result"},
		)
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snapmark_http_requests_total",
				Help: "Total HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)
		httpRequestDurationSecs = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "snapmark_http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 30, 60},
			},
			[]string{"method", "route"},
		)
	})
}

// ObserveCapture records one capture attempt.
func ObserveCapture(outcome string, elapsed time.Duration) {
	if capturesTotal == nil {
		return
	}
	capturesTotal.WithLabelValues(outcome).Inc()
	captureDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// ObserveSessionAcquired records a pool acquisition by mode.
func ObserveSessionAcquired(launched bool) {
	if sessionsAcquiredTotal == nil {
		return
	}
	mode := "reused"
	if launched {
		mode = "launched"
	}
	sessionsAcquiredTotal.WithLabelValues(mode).Inc()
}

// ObserveTask records a queue task result.
func ObserveTask(result string) {
	if tasksTotal == nil {
		return
	}
	tasksTotal.WithLabelValues(result).Inc()
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware is a chi middleware that records HTTP request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		if httpRequestsTotal == nil {
			return
		}
		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unknown"
		}
		httpRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(ww.status)).Inc()
		httpRequestDurationSecs.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
