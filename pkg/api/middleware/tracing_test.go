package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// newSpanCapture swaps the global tracer provider for an in-memory
// recorder until the test ends. The recorder collects spans
// synchronously, so no polling is needed.
func newSpanCapture(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	prevTP := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
	return rec
}

func attrValue(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func statusHandler(status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	})
}

func TestTracingContinuesInboundTrace(t *testing.T) {
	rec := newSpanCapture(t)

	// traceparent example values from the W3C spec.
	const inboundTraceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("traceparent", "00-"+inboundTraceID+"-00f067aa0ba902b7-01")

	Tracing(DefaultTracingOptions())(statusHandler(http.StatusOK)).ServeHTTP(httptest.NewRecorder(), req)

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if got := spans[0].Parent().TraceID().String(); got != inboundTraceID {
		t.Errorf("continued trace ID = %s, want %s", got, inboundTraceID)
	}
	if spans[0].SpanKind() != trace.SpanKindServer {
		t.Errorf("span kind = %v, want server", spans[0].SpanKind())
	}
}

func TestTracingStartsRootWithoutHeaders(t *testing.T) {
	rec := newSpanCapture(t)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	Tracing(DefaultTracingOptions())(statusHandler(http.StatusOK)).ServeHTTP(httptest.NewRecorder(), req)

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Parent().IsValid() {
		t.Error("span has a parent, want a root span without inbound headers")
	}
	if spans[0].Name() != http.MethodGet {
		t.Errorf("unrouted span name = %q, want %q", spans[0].Name(), http.MethodGet)
	}
}

func TestTracingNamesSpanAfterRoute(t *testing.T) {
	rec := newSpanCapture(t)

	r := chi.NewRouter()
	r.Use(Tracing(DefaultTracingOptions()))
	r.Get("/signals/{kind}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/signals/interrupt", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	span := spans[0]
	if span.Name() != "GET /signals/{kind}" {
		t.Errorf("span name = %q, want %q", span.Name(), "GET /signals/{kind}")
	}
	if v, ok := attrValue(span, "http.route"); !ok || v.AsString() != "/signals/{kind}" {
		t.Errorf("http.route = %v (present=%v), want /signals/{kind}", v.Emit(), ok)
	}
	if v, ok := attrValue(span, "url.path"); !ok || v.AsString() != "/signals/interrupt" {
		t.Errorf("url.path = %v (present=%v), want /signals/interrupt", v.Emit(), ok)
	}
}

func TestTracingStatusConvention(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		wantCode otelcodes.Code
	}{
		{"2xx left unset", http.StatusOK, otelcodes.Unset},
		{"4xx is the caller's problem", http.StatusNotFound, otelcodes.Unset},
		{"5xx marks the span failed", http.StatusInternalServerError, otelcodes.Error},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := newSpanCapture(t)

			req := httptest.NewRequest(http.MethodGet, "/status", nil)
			Tracing(DefaultTracingOptions())(statusHandler(tc.status)).ServeHTTP(httptest.NewRecorder(), req)

			spans := rec.Ended()
			if len(spans) != 1 {
				t.Fatalf("got %d spans, want 1", len(spans))
			}
			if got := spans[0].Status().Code; got != tc.wantCode {
				t.Errorf("span status = %v, want %v", got, tc.wantCode)
			}
			if v, ok := attrValue(spans[0], "http.response.status_code"); !ok || v.AsInt64() != int64(tc.status) {
				t.Errorf("http.response.status_code = %v (present=%v), want %d", v.Emit(), ok, tc.status)
			}
		})
	}
}

func TestTracingSkipsConfiguredPaths(t *testing.T) {
	rec := newSpanCapture(t)

	mw := Tracing(DefaultTracingOptions())(statusHandler(http.StatusOK))
	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		mw.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if spans := rec.Ended(); len(spans) != 0 {
		t.Fatalf("got %d spans for skip-listed paths, want 0", len(spans))
	}
}

func TestTracingPropagatesContextToHandler(t *testing.T) {
	newSpanCapture(t)

	var handlerSpan trace.SpanContext
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerSpan = trace.SpanContextFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	Tracing(DefaultTracingOptions())(inner).ServeHTTP(httptest.NewRecorder(), req)

	if !handlerSpan.IsValid() {
		t.Fatal("handler context carried no span")
	}
}
