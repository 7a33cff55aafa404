package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can build many apps in one process.
type Metrics struct {
	reg *prometheus.Registry

	requests   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	authEvents *prometheus.CounterVec
	wsConns    prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status class.",
		}, []string{"method", "route", "status_class"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_events_total",
			Help: "Authentication events by name and result.",
		}, []string{"event", "result"}),
		wsConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "realtime_connections",
			Help: "Open realtime WebSocket connections.",
		}),
	}

	m.reg.MustRegister(
		m.requests,
		m.latency,
		m.authEvents,
		m.wsConns,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveRequest(method, route, class string, d time.Duration) {
	m.requests.WithLabelValues(method, route, class).Inc()
	m.latency.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordAuthEvent splits "auth.login.fail" into event "auth.login" and result "fail".
// Events without a trailing outcome count as success.
func (m *Metrics) RecordAuthEvent(event string) {
	name, result := event, "success"
	if i := strings.LastIndexByte(event, '.'); i > 0 {
		switch tail := event[i+1:]; tail {
		case "fail", "rate_limited":
			name, result = event[:i], tail
		}
	}
	m.authEvents.WithLabelValues(name, result).Inc()
}

// Inc and Dec track realtime connections.
func (m *Metrics) Inc() { m.wsConns.Inc() }
func (m *Metrics) Dec() { m.wsConns.Dec() }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
