package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the dispatch pipeline.
// Each Metrics owns its registry so tests and embedded gateways never
// collide on the global default registerer.
type Metrics struct {
	registry *prometheus.Registry

	dispatches *prometheus.CounterVec
	executions *prometheus.HistogramVec
	inflight   *prometheus.GaugeVec
	unresolved *prometheus.CounterVec
}

// NewMetrics creates and registers the pipeline collectors under namespace.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "dispatch"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_total",
			Help:      "Dispatcher chain results by outcome and winning dispatcher.",
		}, []string{"outcome", "dispatcher"}),
		executions: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "Duration of short-circuit and endpoint handler executions.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind", "result"}),
		inflight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "executions_in_flight",
			Help:      "Handlers currently executing.",
		}, []string{"kind"}),
		unresolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unresolved_endpoint_total",
			Help:      "Requests whose selected endpoint had no handler factory.",
		}, []string{"endpoint"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.dispatches,
		m.executions,
		m.inflight,
		m.unresolved,
	)

	return m
}

// Registry exposes the underlying registry for additional collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
