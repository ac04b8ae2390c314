// Package middleware provides HTTP middleware for the Errandly API server.
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewSlogLogger returns a middleware that logs one structured JSON line
// per request via the provided slog.Logger: method, path, HTTP status,
// duration, client address, and the request ID set by chi's RequestID
// middleware.
//
// Wire it after chimiddleware.RequestID and RealIP so the request ID and
// the client address are both populated. The long-lived feed stream logs
// its line when the client disconnects, like any other request.
func NewSlogLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// WrapResponseWriter intercepts WriteHeader so the status code
			// can be read after the downstream handler has run.
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			log.InfoContext(r.Context(), "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_addr", r.RemoteAddr,
				"request_id", chimiddleware.GetReqID(r.Context()),
			)
		})
	}
}
