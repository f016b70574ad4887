package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// MetricsRecorder receives one observation per completed request plus
// active-connection accounting.
type MetricsRecorder interface {
	RecordHTTPRequest(method, path, status string, elapsed time.Duration)
	IncActiveConnections()
	DecActiveConnections()
}

// ContextMetricsRecorder is an optional extension for recorders that
// read the request context, typically to attach trace exemplars. When
// present it is preferred over RecordHTTPRequest.
type ContextMetricsRecorder interface {
	RecordHTTPRequestWithContext(ctx context.Context, method, path, status string, elapsed time.Duration)
}

// Metrics observes every request except /metrics itself, which would
// otherwise count its own scrapes. Requests that panic are recorded as
// 500 before the panic continues up to Recovery.
func Metrics(recorder MetricsRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/metrics" || strings.HasPrefix(r.URL.Path, "/metrics/") {
				next.ServeHTTP(w, r)
				return
			}

			recorder.IncActiveConnections()
			defer recorder.DecActiveConnections()

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				if rec := recover(); rec != nil {
					observe(recorder, r, http.StatusInternalServerError, time.Since(start))
					panic(rec)
				}
			}()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			observe(recorder, r, status, time.Since(start))
		}
		return http.HandlerFunc(fn)
	}
}

func observe(recorder MetricsRecorder, r *http.Request, status int, elapsed time.Duration) {
	path := normalizePath(r.URL.Path)
	code := strconv.Itoa(status)
	if cr, ok := recorder.(ContextMetricsRecorder); ok {
		cr.RecordHTTPRequestWithContext(r.Context(), r.Method, path, code, elapsed)
		return
	}
	recorder.RecordHTTPRequest(r.Method, path, code, elapsed)
}

// normalizePath collapses path segments that look like identifiers so
// label cardinality stays bounded. UUIDs (36 chars, 4 dashes) and
// all-numeric segments become ":id".
func normalizePath(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		if len(seg) == 36 && strings.Count(seg, "-") == 4 {
			segments[i] = ":id"
			continue
		}
		if _, err := strconv.Atoi(seg); err == nil {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}
