// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector on a private registry so tests never
// collide on the global default.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests   *prometheus.CounterVec
	Purchases      *prometheus.CounterVec
	RateLimited    prometheus.Counter
	RegistrarCalls *prometheus.CounterVec
}

// New creates a populated registry including Go runtime collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "winston_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		Purchases: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "winston_purchases_total",
			Help: "Purchase attempts by result.",
		}, []string{"result"}),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "winston_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		}),
		RegistrarCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "winston_registrar_calls_total",
			Help: "Upstream registrar calls by driver, operation and result.",
		}, []string{"driver", "op", "result"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
