// Package tracing wires process-wide OpenTelemetry tracing with an
// OTLP gRPC exporter.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/goclaw/sigmux/config"
	"github.com/goclaw/sigmux/pkg/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace/noop"
)

// ShutdownFunc flushes and tears down the tracer provider.
type ShutdownFunc func(ctx context.Context) error

// Overridable in tests.
var (
	exporterFactory = buildOTLPExporter

	reportExportFailure = func(err error, endpoint string, spanCount int) {
		logger.Warn("Trace export failed",
			"error", err,
			"endpoint", endpoint,
			"span_count", spanCount,
		)
	}
)

// Init installs the global tracer provider and propagators. With
// tracing disabled it installs a noop provider so instrumentation
// stays callable. The returned ShutdownFunc must run before exit to
// flush buffered spans.
func Init(ctx context.Context, cfg config.TracingConfig, serviceName, serviceVersion string) (ShutdownFunc, error) {
	installPropagators()

	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	}

	if err := checkConfig(cfg); err != nil {
		return nil, err
	}

	exp, err := exporterFactory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create tracing exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(&failsafeExporter{
			SpanExporter: exp,
			endpoint:     endpointHost(cfg.Endpoint),
		}),
		sdktrace.WithResource(resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		)),
		sdktrace.WithSampler(samplerFor(cfg)),
	)
	otel.SetTracerProvider(tp)

	// Flush what the batcher holds, then stop. Both steps run even if
	// the first fails; the caller sees every failure.
	return func(shutdownCtx context.Context) error {
		flushErr := tp.ForceFlush(shutdownCtx)
		if flushErr != nil {
			flushErr = fmt.Errorf("flush spans: %w", flushErr)
		}
		stopErr := tp.Shutdown(shutdownCtx)
		if stopErr != nil {
			stopErr = fmt.Errorf("stop tracer provider: %w", stopErr)
		}
		return errors.Join(flushErr, stopErr)
	}, nil
}

func installPropagators() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

func checkConfig(cfg config.TracingConfig) error {
	if strings.TrimSpace(cfg.Exporter) == "" {
		return fmt.Errorf("tracing exporter cannot be empty")
	}
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return fmt.Errorf("tracing endpoint cannot be empty")
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("tracing timeout must be > 0")
	}
	return nil
}

func buildOTLPExporter(ctx context.Context, cfg config.TracingConfig) (sdktrace.SpanExporter, error) {
	endpoint := endpointHost(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("tracing endpoint cannot be empty")
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithTimeout(cfg.Timeout),
		otlptracegrpc.WithInsecure(),
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}
	return otlptracegrpc.New(ctx, opts...)
}

// failsafeExporter logs export failures instead of returning them, so
// a collector outage degrades to lost spans rather than error noise
// on every batch.
type failsafeExporter struct {
	sdktrace.SpanExporter
	endpoint string
}

func (e *failsafeExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if err := e.SpanExporter.ExportSpans(ctx, spans); err != nil {
		reportExportFailure(err, e.endpoint, len(spans))
	}
	return nil
}

// samplerFor maps the configured sampler name onto the SDK. "ratio"
// and anything unrecognized sample a fraction of new traces and
// follow the parent decision on propagated ones.
func samplerFor(cfg config.TracingConfig) sdktrace.Sampler {
	switch strings.ToLower(strings.TrimSpace(cfg.Sampler)) {
	case "always_on":
		return sdktrace.AlwaysSample()
	case "always_off":
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))
	}
}

// endpointHost strips a scheme from the configured endpoint, since
// the gRPC exporter wants a bare host:port.
func endpointHost(endpoint string) string {
	raw := strings.TrimSpace(endpoint)
	if raw == "" || !strings.Contains(raw, "://") {
		return raw
	}
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		return u.Host
	}
	return raw
}
