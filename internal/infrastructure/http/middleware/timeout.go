package middleware

import (
	"context"
	"net/http"
	"time"
)

// Deadline bounds the request context by d. The server's WriteTimeout closes the
// connection but leaves the handler running; with a deadline, submissions still
// queued for a CRPT slot give up at the same point instead.
func Deadline(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
