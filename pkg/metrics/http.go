package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

func (m *Manager) initHTTPMetrics(cfg Config) {
	m.httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of requests served by the observation API",
		},
		[]string{"method", "path", "status"},
	)

	m.httpLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latency of observation API requests",
			Buckets: cfg.HTTPDurationBuckets,
		},
		[]string{"method", "path"},
	)

	m.httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_active_connections",
			Help: "Current number of in-flight API requests",
		},
	)

	m.registry.MustRegister(
		m.httpReqs,
		m.httpLatency,
		m.httpInFlight,
	)
}

// RecordHTTPRequest counts one request and observes its latency.
func (m *Manager) RecordHTTPRequest(method, path, status string, elapsed time.Duration) {
	if !m.enabled {
		return
	}
	m.httpReqs.WithLabelValues(method, path, status).Inc()
	m.httpLatency.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// RecordHTTPRequestWithContext is RecordHTTPRequest plus an exemplar
// pointing at the request's span, when that span is sampled. The
// exemplar links a latency bucket to a concrete trace.
func (m *Manager) RecordHTTPRequestWithContext(ctx context.Context, method, path, status string, elapsed time.Duration) {
	if !m.enabled {
		return
	}

	exemplar, sampled := traceExemplarLabels(ctx)
	counter := m.httpReqs.WithLabelValues(method, path, status)
	histogram := m.httpLatency.WithLabelValues(method, path)
	if !sampled {
		counter.Inc()
		histogram.Observe(elapsed.Seconds())
		return
	}

	if adder, ok := counter.(prometheus.ExemplarAdder); ok {
		adder.AddWithExemplar(1, exemplar)
	} else {
		counter.Inc()
	}
	if observer, ok := histogram.(prometheus.ExemplarObserver); ok {
		observer.ObserveWithExemplar(elapsed.Seconds(), exemplar)
	} else {
		histogram.Observe(elapsed.Seconds())
	}
}

func traceExemplarLabels(ctx context.Context) (prometheus.Labels, bool) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() || !sc.IsSampled() {
		return nil, false
	}
	return prometheus.Labels{
		"trace_id": sc.TraceID().String(),
		"span_id":  sc.SpanID().String(),
	}, true
}

// IncActiveConnections tracks one more in-flight request.
func (m *Manager) IncActiveConnections() {
	if !m.enabled {
		return
	}
	m.httpInFlight.Inc()
}

// DecActiveConnections tracks one finished request.
func (m *Manager) DecActiveConnections() {
	if !m.enabled {
		return
	}
	m.httpInFlight.Dec()
}
