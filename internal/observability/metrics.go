// Package observability exposes Prometheus metrics for the web app and worker.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/grocerops/grocerops/internal/inventory"
	jobmetrics "github.com/grocerops/grocerops/internal/jobs"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	backendCalls    *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec
	stockLevels     *prometheus.GaugeVec
	openAlerts      *prometheus.GaugeVec
	alertsRaised    prometheus.Counter
	lastScan        prometheus.Gauge
	jobs            *jobmetrics.Metrics
}

// NewMetrics initialises the registry and every collector.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grocerops_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "grocerops_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	backendCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grocerops_backend_requests_total",
		Help: "Backend REST calls by method, endpoint and status code. Status 0 means the call never completed.",
	}, []string{"method", "endpoint", "code"})
	backendDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "grocerops_backend_request_duration_seconds",
		Help:    "Backend REST call latency per endpoint.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})
	stock := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "grocerops_inventory_products",
		Help: "Products per stock status in the latest snapshot.",
	}, []string{"status"})
	alerts := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "grocerops_inventory_open_alerts",
		Help: "Open inventory alerts per kind in the latest snapshot.",
	}, []string{"kind"})
	raised := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "grocerops_inventory_alerts_raised_total",
		Help: "Inventory alerts newly raised by scans.",
	})
	lastScan := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "grocerops_inventory_last_scan_timestamp_seconds",
		Help: "Unix time of the last completed inventory scan.",
	})
	registry.MustRegister(requests, duration, backendCalls, backendDuration, stock, alerts, raised, lastScan)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		backendCalls:    backendCalls,
		backendDuration: backendDuration,
		stockLevels:     stock,
		openAlerts:      alerts,
		alertsRaised:    raised,
		lastScan:        lastScan,
		jobs:            jobmetrics.NewMetrics(registry),
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

// ObserveBackendCall implements backend.Observer.
func (m *Metrics) ObserveBackendCall(method, endpoint string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.backendCalls.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	m.backendDuration.WithLabelValues(method, endpoint).Observe(elapsed.Seconds())
}

// ObserveInventory implements inventory.Observer.
func (m *Metrics) ObserveInventory(counts inventory.Counts, alerts map[inventory.AlertKind]int, raised int) {
	if m == nil {
		return
	}
	m.stockLevels.WithLabelValues(string(inventory.StockOK)).Set(float64(counts.InStock))
	m.stockLevels.WithLabelValues(string(inventory.StockLow)).Set(float64(counts.LowStock))
	m.stockLevels.WithLabelValues(string(inventory.StockOut)).Set(float64(counts.OutOfStock))
	for _, kind := range inventory.Kinds() {
		m.openAlerts.WithLabelValues(string(kind)).Set(float64(alerts[kind]))
	}
	if raised > 0 {
		m.alertsRaised.Add(float64(raised))
	}
	m.lastScan.SetToCurrentTime()
}

// Jobs returns the background job collectors registered on this registry.
func (m *Metrics) Jobs() *jobmetrics.Metrics {
	if m == nil {
		return nil
	}
	return m.jobs
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
