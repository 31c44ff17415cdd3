// Package metrics exposes the hub's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hub"

// Drop reasons.
const (
	ReasonOffline      = "offline"
	ReasonUnknownID    = "unknown_id"
	ReasonForbidden    = "forbidden"
	ReasonMalformed    = "malformed"
	ReasonRateLimited  = "rate_limited"
	ReasonBackpressure = "backpressure"
)

// Event outcomes.
const (
	OutcomeHandled = "handled"
	OutcomeDropped = "dropped"
	OutcomePanic   = "panic"
)

type Metrics struct {
	Connections  prometheus.Gauge
	OnlineUsers  prometheus.Gauge
	ActiveCalls  prometheus.Gauge
	LiveStreams  prometheus.Gauge
	LiveViewers  prometheus.Gauge
	Events       *prometheus.CounterVec
	Dropped      *prometheus.CounterVec
	AuthFailures *prometheus.CounterVec
}

// New registers every collector on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Connections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "connections",
			Help: "Open signaling connections.",
		}),
		OnlineUsers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "online_users",
			Help: "Users with a current session.",
		}),
		ActiveCalls: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "calls",
			Help: "Ringing or active calls.",
		}),
		LiveStreams: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "live_streams",
			Help: "Live broadcasts in the directory.",
		}),
		LiveViewers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "live_viewers",
			Help: "Viewers across all live broadcasts.",
		}),
		Events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_total",
			Help: "Client events processed by the dispatcher.",
		}, []string{"type", "outcome"}),
		Dropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "dropped_total",
			Help: "Events or frames dropped without effect.",
		}, []string{"reason"}),
		AuthFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "auth_failures_total",
			Help: "Rejected connection attempts.",
		}, []string{"reason"}),
	}
}

// Nop returns collectors registered nowhere.
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}

func (m *Metrics) Drop(reason string) {
	m.Dropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) Event(typ, outcome string) {
	m.Events.WithLabelValues(typ, outcome).Inc()
}
