package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harun/factkit/pkg/tool"
	"github.com/harun/factkit/pkg/toolresult"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	registry *prometheus.Registry

	// Tool metrics
	ToolInvocationsTotal      *prometheus.CounterVec
	ToolInvocationDuration    *prometheus.HistogramVec
	ToolInvocationErrorsTotal *prometheus.CounterVec
	ToolsRegistered           prometheus.Gauge

	// HTTP adapter metrics
	HTTPRequestsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		ToolInvocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tool_invocations_total",
				Help: "Total number of tool invocations by outcome",
			},
			[]string{"tool", "status", "code"},
		),
		ToolInvocationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tool_invocation_duration_seconds",
				Help:    "Duration of tool invocations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
		ToolInvocationErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tool_invocation_errors_total",
				Help: "Total number of failed or retryable tool invocations",
			},
			[]string{"tool", "code"},
		),
		ToolsRegistered: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tools_registered",
				Help: "Number of tools in the registry",
			},
		),

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP adapter requests",
			},
			[]string{"route", "code"},
		),
	}

	m.registerMetrics()

	return m
}

// registerMetrics registers all metrics with the registry
func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(m.ToolInvocationsTotal)
	m.registry.MustRegister(m.ToolInvocationDuration)
	m.registry.MustRegister(m.ToolInvocationErrorsTotal)
	m.registry.MustRegister(m.ToolsRegistered)
	m.registry.MustRegister(m.HTTPRequestsTotal)

	m.registry.MustRegister(collectors.NewGoCollector())
	m.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// ObserveInvocation implements tool.Observer.
func (m *Metrics) ObserveInvocation(inv tool.Invocation) {
	m.ToolInvocationsTotal.WithLabelValues(inv.Tool, string(inv.Status), inv.Code).Inc()
	m.ToolInvocationDuration.WithLabelValues(inv.Tool).Observe(inv.Duration.Seconds())
	if inv.Status != toolresult.StatusOK {
		m.ToolInvocationErrorsTotal.WithLabelValues(inv.Tool, inv.Code).Inc()
	}
}

// TrackRegistry observes every invocation on reg and publishes its size.
func (m *Metrics) TrackRegistry(reg *tool.Registry) {
	reg.AddObserver(m)
	m.ToolsRegistered.Set(float64(reg.Count()))
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
