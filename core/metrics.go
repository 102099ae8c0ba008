package core

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "authchat"

// Metrics holds the Prometheus collectors for auth and presence.
type Metrics struct {
	AuthAttempts     *prometheus.CounterVec
	ConnectedUsers   prometheus.Gauge
	PresenceMessages prometheus.Counter

	gatherer prometheus.Gatherer
}

// NewMetrics registers collectors against reg. Each router gets its own
// registry so tests can build several without duplicate registration panics.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AuthAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "auth_attempts_total",
			Help:      "Login and registration attempts by outcome",
		}, []string{"op", "result"}),
		ConnectedUsers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "presence_connected_users",
			Help:      "Currently connected presence clients",
		}),
		PresenceMessages: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "presence_messages_total",
			Help:      "Chat messages relayed over the presence channel",
		}),
		gatherer: reg,
	}
}

// NewProcessMetrics is NewMetrics on a fresh registry that also exports Go runtime and process stats.
func NewProcessMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewMetrics(reg)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) authResult(op, result string) {
	if m == nil {
		return
	}
	m.AuthAttempts.WithLabelValues(op, result).Inc()
}
