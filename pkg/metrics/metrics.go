package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pear"

// ServerMetrics holds HTTP level collectors.
type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
}

// NewServerMetrics registers the HTTP collectors on reg.
func NewServerMetrics(reg prometheus.Registerer) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"route", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"route"})

	reg.MustRegister(requests, latency)
	return &ServerMetrics{Requests: requests, LatencyMS: latency}
}

// OrderMetrics holds order lifecycle collectors. A nil *OrderMetrics is
// valid and records nothing.
type OrderMetrics struct {
	placed    *prometheus.CounterVec
	updates   *prometheus.CounterVec
	fallbacks prometheus.Counter
}

// NewOrderMetrics registers the order collectors on reg.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	m := &OrderMetrics{
		placed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Orders placed, by order mode.",
		}, []string{"mode"}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_updates_total",
			Help:      "Status updates appended, by status.",
		}, []string{"status"}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_message_fallbacks_total",
			Help:      "Status messages replaced by the fallback text after a provider failure.",
		}),
	}
	reg.MustRegister(m.placed, m.updates, m.fallbacks)
	return m
}

func (m *OrderMetrics) OrderPlaced(mode string) {
	if m != nil {
		m.placed.WithLabelValues(mode).Inc()
	}
}

func (m *OrderMetrics) StatusUpdated(status string) {
	if m != nil {
		m.updates.WithLabelValues(status).Inc()
	}
}

func (m *OrderMetrics) MessageFallback() {
	if m != nil {
		m.fallbacks.Inc()
	}
}

// Handler exposes the collectors gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
