package statusapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the agent's own Prometheus registry. A private registry keeps
// the default registry's Go runtime collectors out of the scrape surface.
type Metrics struct {
	registry *prometheus.Registry

	verdictChanges *prometheus.CounterVec
	sourceEvents   *prometheus.CounterVec
	wsClients      prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		verdictChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netstatus",
			Name:      "verdict_changes_total",
			Help:      "Edge-triggered verdict changes by kind and resulting state.",
		}, []string{"kind", "state"}),
		sourceEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netstatus",
			Name:      "source_events_total",
			Help:      "Monitor events consumed, by originating source.",
		}, []string{"source"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "netstatus",
			Name:      "websocket_clients",
			Help:      "Currently connected websocket clients.",
		}),
	}
	m.registry.MustRegister(m.verdictChanges, m.sourceEvents, m.wsClients)

	return m
}

func (m *Metrics) VerdictChanged(kind, state string) {
	m.verdictChanges.WithLabelValues(kind, state).Inc()
}

func (m *Metrics) SourceEvent(source string) {
	m.sourceEvents.WithLabelValues(source).Inc()
}

func (m *Metrics) WSClientConnected() {
	m.wsClients.Inc()
}

func (m *Metrics) WSClientDisconnected() {
	m.wsClients.Dec()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
