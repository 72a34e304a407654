package prometheus

import (
	"strconv"
	"sync"
	"time"

	"github.com/marmos91/keystone/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// serverCollectors are registered once per registry and shared by every
// server through the "server" label.
type serverCollectors struct {
	accepts      *prometheus.CounterVec
	acceptErrors *prometheus.CounterVec
	connections  *prometheus.GaugeVec
	connRequests *prometheus.HistogramVec
	connLifetime *prometheus.HistogramVec
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	decodeErrors *prometheus.CounterVec
}

var (
	collectorsMu  sync.Mutex
	collectorsReg *prometheus.Registry
	shared        *serverCollectors
)

func sharedServerCollectors(reg *prometheus.Registry) *serverCollectors {
	collectorsMu.Lock()
	defer collectorsMu.Unlock()
	if shared != nil && collectorsReg == reg {
		return shared
	}

	f := promauto.With(reg)
	shared = &serverCollectors{
		accepts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "keystone_accepted_connections_total",
			Help: "Total number of sockets accepted by the listener",
		}, []string{"server"}),
		acceptErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "keystone_accept_errors_total",
			Help: "Total number of accept failures, by whether they stopped the listener",
		}, []string{"server", "fatal"}),
		connections: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "keystone_open_connections",
			Help: "Number of connections currently being served",
		}, []string{"server"}),
		connRequests: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "keystone_connection_requests",
			Help:    "Requests served per connection",
			Buckets: []float64{1, 2, 5, 10, 50, 100, 1000},
		}, []string{"server"}),
		connLifetime: f.NewHistogramVec(prometheus.HistogramOpts{
			Name: "keystone_connection_lifetime_seconds",
			Help: "Time between accept and close of a connection",
			Buckets: []float64{
				0.01, // short-lived, one request
				0.1,
				1,
				10,
				60, // keep-alive clients
				300,
				3600,
			},
		}, []string{"server"}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "keystone_requests_total",
			Help: "Total number of HTTP requests served",
		}, []string{"server", "method", "status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name: "keystone_request_duration_milliseconds",
			Help: "Time from decoded request to encoded response in milliseconds",
			Buckets: []float64{
				0.1, // 100us - in-memory handlers
				0.5,
				1,
				5,
				10,
				50,
				100,
				500,
				1000, // 1s - slow handlers
				5000,
			},
		}, []string{"server", "method"}),
		decodeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "keystone_decode_errors_total",
			Help: "Total number of requests that could not be parsed",
		}, []string{"server"}),
	}
	collectorsReg = reg
	return shared
}

// serverMetrics is the Prometheus implementation of metrics.ServerMetrics
// for one named server.
type serverMetrics struct {
	c    *serverCollectors
	name string
}

// NewServerMetrics returns ServerMetrics labelled with the given server
// name, or nil if metrics are not enabled (InitRegistry not called).
func NewServerMetrics(name string) metrics.ServerMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	return &serverMetrics{c: sharedServerCollectors(metrics.GetRegistry()), name: name}
}

func (m *serverMetrics) RecordAccept() {
	m.c.accepts.WithLabelValues(m.name).Inc()
}

func (m *serverMetrics) RecordAcceptError(fatal bool) {
	m.c.acceptErrors.WithLabelValues(m.name, strconv.FormatBool(fatal)).Inc()
}

func (m *serverMetrics) RecordConnectionStart() {
	m.c.connections.WithLabelValues(m.name).Inc()
}

func (m *serverMetrics) RecordConnectionEnd(requests int, lifetime time.Duration) {
	m.c.connections.WithLabelValues(m.name).Dec()
	m.c.connRequests.WithLabelValues(m.name).Observe(float64(requests))
	m.c.connLifetime.WithLabelValues(m.name).Observe(lifetime.Seconds())
}

func (m *serverMetrics) RecordRequest(method string, status int, duration time.Duration) {
	m.c.requests.WithLabelValues(m.name, method, strconv.Itoa(status)).Inc()
	m.c.duration.WithLabelValues(m.name, method).Observe(float64(duration.Microseconds()) / 1000.0)
}

func (m *serverMetrics) RecordDecodeError() {
	m.c.decodeErrors.WithLabelValues(m.name).Inc()
}
