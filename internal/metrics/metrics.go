// Package metrics exposes the bot's Prometheus collectors. Collectors are
// registered on a private registry so tests can create as many as they like.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics aggregates the bot-wide collectors.
type Metrics struct {
	registry *prometheus.Registry

	TurnsTotal      *prometheus.CounterVec
	BridgeRequests  *prometheus.CounterVec
	BridgeRoundTrip prometheus.Histogram
}

// WaiterCounter reports the number of in-flight correlation entries.
type WaiterCounter interface {
	Len() int
}

// PeerCounter reports the currently connected tunnel peers.
type PeerCounter interface {
	ConnectedPeers() []string
}

func New(waiters WaiterCounter, peers PeerCounter) *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		TurnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jirabridge_turns_total",
			Help: "Inbound conversation turns by result.",
		}, []string{"result"}),
		BridgeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jirabridge_bridge_requests_total",
			Help: "Tunneled Jira requests by result.",
		}, []string{"result"}),
		BridgeRoundTrip: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "jirabridge_bridge_round_trip_seconds",
			Help:    "Round-trip latency of tunneled Jira requests.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}
	if waiters != nil {
		registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "jirabridge_bridge_waiters",
			Help: "Requests currently waiting on a tunnel response.",
		}, func() float64 { return float64(waiters.Len()) }))
	}
	if peers != nil {
		registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "jirabridge_bridge_peers",
			Help: "Tunnel peers currently connected.",
		}, func() float64 { return float64(len(peers.ConnectedPeers())) }))
	}
	registry.MustRegister(
		m.TurnsTotal,
		m.BridgeRequests,
		m.BridgeRoundTrip,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
