package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"

	"github.com/HaKr/token-server/helper"
	"github.com/HaKr/token-server/logger"
)

// withMiddleware wraps the route mux with the request-scoped plumbing
// every handler gets for free: RealIP and panic recovery from
// go-chi/chi/middleware (grounded on listener/api/listener.go's use of the
// same package), plus a ulid-based request ID and an access-log line at
// Trace level.
func withMiddleware(next http.Handler, log *logger.GatedLogger) http.Handler {
	h := requestID(log)(next)
	h = middleware.RealIP(h)
	h = middleware.Recoverer(h)
	return h
}

func requestID(log *logger.GatedLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := helper.GenerateRequestID()
			w.Header().Set("X-Request-Id", id)

			start := timeNow()
			next.ServeHTTP(w, r)

			if log != nil {
				log.Trace("request",
					logger.String("request_id", id),
					logger.String("method", r.Method),
					logger.String("path", r.URL.Path),
					logger.Duration("elapsed", time.Since(start)),
				)
			}
		})
	}
}
