// Package metrics holds the Prometheus collectors shared by the server and
// the print pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "formmatic",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "formmatic",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "formmatic",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "path"},
	)

	fillCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "formmatic",
			Subsystem: "print",
			Name:      "fill_calls_total",
			Help:      "PDF fill calls by form code and outcome.",
		},
		[]string{"form", "outcome"},
	)

	fillDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "formmatic",
			Subsystem: "print",
			Name:      "fill_duration_seconds",
			Help:      "Duration of PDF fill calls.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"outcome"},
	)

	mergeInputs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "formmatic",
			Subsystem: "print",
			Name:      "merge_inputs_total",
			Help:      "PDFs handed to the merge routine, by outcome.",
		},
		[]string{"outcome"},
	)

	saves = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "formmatic",
			Subsystem: "transactions",
			Name:      "saves_total",
			Help:      "Transaction saves and updates, by outcome.",
		},
		[]string{"op", "outcome"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		fillCalls,
		fillDuration,
		mergeInputs,
		saves,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler exposes the registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler records request counts and latency. Paths are labelled
// by chi route pattern to keep cardinality bounded.
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

		path := routePattern(r)
		method := strings.ToUpper(r.Method)
		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	})
}

// RecordFill records one call to the fill endpoint. outcome is "ok",
// "empty" or "error".
func RecordFill(form, outcome string, duration time.Duration) {
	if form == "" {
		form = "unknown"
	}
	fillCalls.WithLabelValues(form, outcome).Inc()
	fillDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordMerge records how many inputs made it into a merged PDF.
func RecordMerge(merged, failed int) {
	mergeInputs.WithLabelValues("merged").Add(float64(merged))
	mergeInputs.WithLabelValues("failed").Add(float64(failed))
}

// RecordSave records a save ("save") or update ("update").
func RecordSave(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	saves.WithLabelValues(op, outcome).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
