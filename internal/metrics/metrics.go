package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	bills       *prometheus.CounterVec
	checkoutErr *prometheus.CounterVec
	settlements *prometheus.CounterVec
}

// New registers the service collectors on a fresh registry along with the
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return NewWithRegisterer(reg, reg)
}

func NewWithRegisterer(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	m := &Metrics{
		gatherer: gatherer,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		bills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockflow_bills_created_total",
			Help: "Bills persisted by mode and payment status.",
		}, []string{"mode", "payment_status"}),
		checkoutErr: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockflow_checkout_failures_total",
			Help: "Checkouts rejected, by error code.",
		}, []string{"reason"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockflow_udhaar_settlements_total",
			Help: "Pending bills settled, by payment method.",
		}, []string{"method"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.duration, m.bills, m.checkoutErr, m.settlements)
	}
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(method string, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	route = normalizeLabel(route)
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) BillCreated(isReturn bool, paymentStatus string) {
	if m == nil {
		return
	}
	mode := "sale"
	if isReturn {
		mode = "return"
	}
	m.bills.WithLabelValues(mode, normalizeLabel(paymentStatus)).Inc()
}

func (m *Metrics) CheckoutFailed(reason string) {
	if m == nil {
		return
	}
	m.checkoutErr.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (m *Metrics) Settled(method string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(normalizeLabel(method)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
