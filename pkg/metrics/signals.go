package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func (m *Manager) initSignalMetrics() {
	m.signalOccurrences = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_occurrences_total",
			Help: "Total number of signal occurrences observed from the OS",
		},
		[]string{"kind"},
	)

	m.signalDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_deliveries_total",
			Help: "Total number of wakeups delivered to subscribers",
		},
		[]string{"kind"},
	)

	m.signalCoalesced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_coalesced_total",
			Help: "Total number of occurrences absorbed into one already pending, by stage",
		},
		[]string{"kind", "stage"},
	)

	m.signalSubscribers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "signal_subscribers",
			Help: "Current number of live subscriptions",
		},
		[]string{"kind"},
	)

	m.dispatcherFails = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "signal_dispatcher_failures_total",
			Help: "Total number of fatal signal dispatcher failures",
		},
	)

	m.registry.MustRegister(
		m.signalOccurrences,
		m.signalDeliveries,
		m.signalCoalesced,
		m.signalSubscribers,
		m.dispatcherFails,
	)
}

// RecordOccurrence records a signal occurrence observed from the OS.
func (m *Manager) RecordOccurrence(kind string) {
	if !m.enabled {
		return
	}
	m.signalOccurrences.WithLabelValues(kind).Inc()
}

// RecordDelivery records a wakeup delivered to one subscriber.
func (m *Manager) RecordDelivery(kind string) {
	if !m.enabled {
		return
	}
	m.signalDeliveries.WithLabelValues(kind).Inc()
}

// RecordCoalesced records an occurrence absorbed into a pending one.
func (m *Manager) RecordCoalesced(kind string, stage string) {
	if !m.enabled {
		return
	}
	m.signalCoalesced.WithLabelValues(kind, stage).Inc()
}

// RecordSubscribe records a new subscription.
func (m *Manager) RecordSubscribe(kind string) {
	if !m.enabled {
		return
	}
	m.signalSubscribers.WithLabelValues(kind).Inc()
}

// RecordUnsubscribe records a released subscription.
func (m *Manager) RecordUnsubscribe(kind string) {
	if !m.enabled {
		return
	}
	m.signalSubscribers.WithLabelValues(kind).Dec()
}

// RecordDispatcherFailure records a fatal dispatcher breakdown.
func (m *Manager) RecordDispatcherFailure() {
	if !m.enabled {
		return
	}
	m.dispatcherFails.Inc()
}
