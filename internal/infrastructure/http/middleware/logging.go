package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	ctxutil "selsup/crptgateway/internal/infrastructure/context"
)

// CorrelationHeader is echoed on every response so callers can match gateway logs
// and CRPT audit records to their request.
const CorrelationHeader = "X-Correlation-ID"

// RequestLogger returns a middleware that logs one line per HTTP request.
// The chi request ID, or an inbound X-Correlation-ID, becomes the correlation ID
// that the CRPT client forwards upstream. Log levels follow the status code:
//   - Info: 2xx, 3xx
//   - Warn: 4xx
//   - Error: 5xx
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			correlationID := r.Header.Get(CorrelationHeader)
			if correlationID == "" {
				correlationID = chimw.GetReqID(r.Context())
			}
			ctx := r.Context()
			if correlationID != "" {
				ctx = ctxutil.WithCorrelationID(ctx, correlationID)
			} else {
				ctx, correlationID = ctxutil.EnsureCorrelationID(ctx)
			}
			w.Header().Set(CorrelationHeader, correlationID)

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(time.Since(start).Nanoseconds()) / 1e6,
				"bytes", ww.BytesWritten(),
				"correlation_id", correlationID,
			}
			if requestID := chimw.GetReqID(r.Context()); requestID != "" {
				attrs = append(attrs, "request_id", requestID)
			}
			if userAgent := r.Header.Get("User-Agent"); userAgent != "" {
				attrs = append(attrs, "user_agent", userAgent)
			}

			switch {
			case status >= 500:
				log.ErrorContext(ctx, "HTTP request", attrs...)
			case status >= 400:
				log.WarnContext(ctx, "HTTP request", attrs...)
			default:
				log.InfoContext(ctx, "HTTP request", attrs...)
			}
		})
	}
}
