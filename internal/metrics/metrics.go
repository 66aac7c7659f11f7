package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec

	generated       prometheus.Counter
	generateFailed  prometheus.Counter
	pausedTicks     prometheus.Counter
	restocks        *prometheus.CounterVec
	restockRejected prometheus.Counter
	exports         *prometheus.CounterVec
}

// New creates the collectors and registers them on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		generated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "generator_transactions_total",
			Help: "Synthetic transactions written to the store",
		}),
		generateFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "generator_failures_total",
			Help: "Synthetic transactions the store refused",
		}),
		pausedTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "generator_paused_ticks_total",
			Help: "Generator ticks skipped because the pipeline was paused",
		}),
		restocks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_restocked_units_total",
				Help: "Units added through restocks",
			},
			[]string{"product_id"},
		),
		restockRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inventory_restock_rejected_total",
			Help: "Restock requests rejected as invalid",
		}),
		exports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "report_exports_total",
				Help: "Report export attempts by outcome",
			},
			[]string{"outcome"},
		),
	}

	m.registry.MustRegister(
		m.requests,
		m.duration,
		m.generated,
		m.generateFailed,
		m.pausedTicks,
		m.restocks,
		m.restockRejected,
		m.exports,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, path string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// TransactionGenerated counts a written synthetic transaction.
func (m *Metrics) TransactionGenerated() {
	if m == nil {
		return
	}
	m.generated.Inc()
}

// TransactionFailed counts a synthetic transaction the store refused.
func (m *Metrics) TransactionFailed() {
	if m == nil {
		return
	}
	m.generateFailed.Inc()
}

// GeneratorPaused counts a tick skipped while paused.
func (m *Metrics) GeneratorPaused() {
	if m == nil {
		return
	}
	m.pausedTicks.Inc()
}

// Restocked counts units added for a product.
func (m *Metrics) Restocked(productID string, quantity int64) {
	if m == nil {
		return
	}
	m.restocks.WithLabelValues(productID).Add(float64(quantity))
}

// RestockRejected counts an invalid restock request.
func (m *Metrics) RestockRejected() {
	if m == nil {
		return
	}
	m.restockRejected.Inc()
}

// ReportExported counts an export attempt by outcome, the job status it
// ended in ("completed" or "failed").
func (m *Metrics) ReportExported(outcome string) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(outcome).Inc()
}
