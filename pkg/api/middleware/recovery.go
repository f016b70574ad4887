package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/goclaw/sigmux/pkg/api/response"
	"github.com/goclaw/sigmux/pkg/logger"
)

// Recovery converts handler panics into 500 responses. The panic value
// and stack go to the log only; the client sees a generic message.
// http.ErrAbortHandler is re-raised so net/http can abort the
// connection as usual.
func Recovery(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				log.ErrorContext(r.Context(), "panic recovered",
					"error", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)

				response.Error(w,
					http.StatusInternalServerError,
					response.ErrCodeInternalServer,
					"internal server error",
					GetRequestID(r.Context()),
				)
			}()

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(fn)
	}
}
