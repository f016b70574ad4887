// Package metrics registers and serves the Prometheus metrics for
// sigmux: signal delivery counters, event stream gauges and HTTP API
// instrumentation, all on a private registry.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns the registry and every instrument. A disabled Manager
// keeps all record methods as cheap no-ops so call sites never need
// nil checks.
type Manager struct {
	registry *prometheus.Registry
	enabled  bool

	signalOccurrences *prometheus.CounterVec
	signalDeliveries  *prometheus.CounterVec
	signalCoalesced   *prometheus.CounterVec
	signalSubscribers *prometheus.GaugeVec
	dispatcherFails   prometheus.Counter

	eventsBroadcast  *prometheus.CounterVec
	websocketClients prometheus.Gauge
	websocketDrops   prometheus.Counter

	httpReqs     *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
	httpInFlight prometheus.Gauge
}

// Config selects where metrics are served and how request latency is
// bucketed.
type Config struct {
	Enabled bool
	Port    int
	Path    string

	HTTPDurationBuckets []float64
}

// DefaultConfig serves /metrics on :9464 with latency buckets from
// 1ms to 5s.
func DefaultConfig() Config {
	return Config{
		Enabled:             true,
		Port:                9464,
		Path:                "/metrics",
		HTTPDurationBuckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}
}

// NewManager builds a Manager with all instruments registered next to
// the Go runtime and process collectors.
func NewManager(cfg Config) *Manager {
	if !cfg.Enabled {
		return &Manager{}
	}

	m := &Manager{
		registry: prometheus.NewRegistry(),
		enabled:  true,
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m.initSignalMetrics()
	m.initEventMetrics()
	m.initHTTPMetrics(cfg)
	return m
}

// NoOpManager builds a disabled Manager.
func NoOpManager() *Manager {
	return &Manager{}
}

// Enabled reports whether instruments actually record.
func (m *Manager) Enabled() bool {
	return m.enabled
}

// Handler serves the registry in the Prometheus exposition format.
// Disabled managers serve 404.
func (m *Manager) Handler() http.Handler {
	if !m.enabled {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer serves the metrics endpoint on its own port until ctx
// is cancelled. Returns http.ErrServerClosed on a clean shutdown.
func (m *Manager) StartServer(ctx context.Context, port int, path string) error {
	if !m.enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	stop := context.AfterFunc(ctx, func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(stopCtx)
	})
	defer stop()

	return srv.ListenAndServe()
}
