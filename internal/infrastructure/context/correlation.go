package context

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

// CorrelationIDKey is the context key for correlation IDs.
const CorrelationIDKey contextKey = "correlation_id"

// WithCorrelationID adds a correlation ID to the context. It follows a submission from the
// inbound request to the outbound CRPT call and its audit record.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, correlationID)
}

// GetCorrelationID retrieves the correlation ID from the context, or "" when absent.
func GetCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return id
	}
	return ""
}

// EnsureCorrelationID returns ctx unchanged when it already carries an ID,
// otherwise a child context holding a new UUID.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	if id := GetCorrelationID(ctx); id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return WithCorrelationID(ctx, id), id
}
