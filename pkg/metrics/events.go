package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func (m *Manager) initEventMetrics() {
	m.eventsBroadcast = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_broadcast_total",
			Help: "Total number of events broadcast to the stream",
		},
		[]string{"type"},
	)

	m.websocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_clients",
			Help: "Current number of connected websocket clients",
		},
	)

	m.websocketDrops = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_dropped_total",
			Help: "Total number of events dropped for slow websocket clients",
		},
	)

	m.registry.MustRegister(
		m.eventsBroadcast,
		m.websocketClients,
		m.websocketDrops,
	)
}

// RecordEventBroadcast records an event published to the stream.
func (m *Manager) RecordEventBroadcast(eventType string) {
	if !m.enabled {
		return
	}
	m.eventsBroadcast.WithLabelValues(eventType).Inc()
}

// IncWebSocketClients increments the connected websocket client count.
func (m *Manager) IncWebSocketClients() {
	if !m.enabled {
		return
	}
	m.websocketClients.Inc()
}

// DecWebSocketClients decrements the connected websocket client count.
func (m *Manager) DecWebSocketClients() {
	if !m.enabled {
		return
	}
	m.websocketClients.Dec()
}

// RecordWebSocketDrop records an event dropped for a slow client.
func (m *Manager) RecordWebSocketDrop() {
	if !m.enabled {
		return
	}
	m.websocketDrops.Inc()
}
