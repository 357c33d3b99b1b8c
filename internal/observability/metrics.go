package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ledgerline/ledgerline/internal/inventory"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	stockMovements  *prometheus.CounterVec
	documentOps     *prometheus.CounterVec
	paymentStatuses *prometheus.CounterVec
}

// NewMetrics initialises the registry and every collector.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerline_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledgerline_http_request_duration_seconds",
		Help:    "HTTP request latency per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	stock := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerline_stock_movements_total",
		Help: "Stock ledger movements by reason and whether the quantity was clamped at zero.",
	}, []string{"reason", "clamped"})
	documents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerline_document_operations_total",
		Help: "Committed document lifecycle operations.",
	}, []string{"operation", "type"})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerline_payment_reconciliations_total",
		Help: "Payment reconciliations by resulting document status.",
	}, []string{"status"})
	registry.MustRegister(requests, duration, stock, documents, payments)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		stockMovements:  stock,
		documentOps:     documents,
		paymentStatuses: payments,
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency.
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

// ObserveStockAdjustment implements inventory.Observer.
func (m *Metrics) ObserveStockAdjustment(reason inventory.Reason, clamped bool) {
	if m == nil {
		return
	}
	m.stockMovements.WithLabelValues(string(reason), strconv.FormatBool(clamped)).Inc()
}

// ObserveDocumentOperation implements documents.Observer.
func (m *Metrics) ObserveDocumentOperation(operation, docType string) {
	if m == nil {
		return
	}
	m.documentOps.WithLabelValues(operation, docType).Inc()
}

// ObservePaymentReconciled implements payments.Observer.
func (m *Metrics) ObservePaymentReconciled(status string) {
	if m == nil {
		return
	}
	m.paymentStatuses.WithLabelValues(status).Inc()
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
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
