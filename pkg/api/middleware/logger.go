// Package middleware holds the HTTP middleware chain used by the API
// server: request IDs, access logging, panic recovery, CORS, timeouts,
// metrics, and trace propagation.
package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/goclaw/sigmux/pkg/logger"
)

// Logger emits one structured access-log line per request after the
// handler returns. Logging through the request context lets the logger
// attach trace IDs when the request carries an active span.
func Logger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			log.InfoContext(r.Context(), "HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"duration_ms", time.Since(start).Milliseconds(),
				"size", ww.BytesWritten(),
				"remote_addr", r.RemoteAddr,
				"request_id", GetRequestID(r.Context()),
			)
		}
		return http.HandlerFunc(fn)
	}
}
