package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	vouchersPosted *prometheus.CounterVec
	vouchersVoided *prometheus.CounterVec
	unbalanced     prometheus.Counter
	postingRetries prometheus.Counter
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jangbu_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jangbu_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	posted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jangbu_vouchers_posted_total",
		Help: "Vouchers posted by transaction direction.",
	}, []string{"direction"})
	voided := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jangbu_vouchers_voided_total",
		Help: "Vouchers voided by transaction direction.",
	}, []string{"direction"})
	unbalanced := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jangbu_unbalanced_vouchers_total",
		Help: "Posting attempts rejected because debits != credits. Alert on any increase.",
	})
	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jangbu_posting_retries_total",
		Help: "Posting transactions retried after serialization conflicts.",
	})
	registry.MustRegister(requests, duration, posted, voided, unbalanced, retries)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		vouchersPosted:  posted,
		vouchersVoided:  voided,
		unbalanced:      unbalanced,
		postingRetries:  retries,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for registering custom metrics.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// VoucherPosted counts a successful posting.
func (m *Metrics) VoucherPosted(direction string) {
	if m != nil {
		m.vouchersPosted.WithLabelValues(direction).Inc()
	}
}

// VoucherVoided counts a void cascade.
func (m *Metrics) VoucherVoided(direction string) {
	if m != nil {
		m.vouchersVoided.WithLabelValues(direction).Inc()
	}
}

// UnbalancedVoucher counts an integrity fault. Anything above zero pages.
func (m *Metrics) UnbalancedVoucher() {
	if m != nil {
		m.unbalanced.Inc()
	}
}

// PostingRetried counts a serialization-conflict retry.
func (m *Metrics) PostingRetried() {
	if m != nil {
		m.postingRetries.Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
