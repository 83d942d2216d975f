// Package metrics groups the Prometheus instruments exposed by the gateway
// and world processes, grounded in ent0n29-samantha's
// internal/observability.Metrics (promauto-registered instruments plus a
// promhttp.Handler) — also the pattern opd-ai-goldbox-rpg and
// phuhao00-suigserver use for their own server loops.
package metrics

import (
	"net/http"
	"time"

	"github.com/huhlig/wyldlands-gw/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every Prometheus instrument either process registers.
// Both cmd/gateway and cmd/world construct one with their own namespace.
type Metrics struct {
	ActiveSessions  prometheus.Gauge
	RPCClientState  prometheus.Gauge
	MailboxDrops    *prometheus.CounterVec
	DispatchLatency prometheus.Histogram
	SessionEvents   *prometheus.CounterVec
}

// New registers and returns a Metrics set under namespace ("gateway" or
// "world" — see cmd/gateway and cmd/world).
func New(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of sessions currently tracked.",
		}),
		RPCClientState: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rpc_client_state",
			Help:      "Gateway RPC client state (0=Disconnected,1=Connecting,2=Connected,3=Failed).",
		}),
		MailboxDrops: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mailbox_drops_total",
			Help:      "Outbound mailbox drop-newest events by session.",
		}, []string{"session_id"}),
		DispatchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_latency_ms",
			Help:      "World dispatch-core latency for one send_input call, in milliseconds.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 200, 500, 1000},
		}),
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session lifecycle events by type.",
		}, []string{"event"}),
	}
}

// ObserveDispatch records one dispatch-core call's latency.
func (m *Metrics) ObserveDispatch(d time.Duration) {
	m.DispatchLatency.Observe(float64(d.Milliseconds()))
}

// ObserveSessionEvent increments the named session lifecycle counter
// ("created", "closed", "reconnected", "expired").
func (m *Metrics) ObserveSessionEvent(event string) {
	m.SessionEvents.WithLabelValues(event).Inc()
}

// DropCounter adapts MailboxDrops to internal/pool.DropCounter's signature.
func (m *Metrics) DropCounter(sessionID model.SessionId) {
	m.MailboxDrops.WithLabelValues(sessionID.String()).Inc()
}

// Handler serves the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
