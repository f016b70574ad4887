package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/goclaw/sigmux/pkg/api/response"
)

// Timeout caps how long a handler may run. The handler runs with a
// deadline on its context; if the deadline fires first, a 504 is
// written and the handler is left to notice the canceled context. A
// client disconnect cancels the context too, but then nobody is
// listening, so no body is written. Non-positive limits disable the
// middleware entirely.
func Timeout(limit time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}

		fn := func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), limit)
			defer cancel()

			finished := make(chan struct{})
			go func() {
				defer close(finished)
				next.ServeHTTP(w, r.WithContext(ctx))
			}()

			select {
			case <-finished:
			case <-ctx.Done():
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					response.Error(w,
						http.StatusGatewayTimeout,
						response.ErrCodeGatewayTimeout,
						"request exceeded the server time limit",
						GetRequestID(r.Context()),
					)
				}
			}
		}
		return http.HandlerFunc(fn)
	}
}
