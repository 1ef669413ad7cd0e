package context

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestGetCorrelationID(t *testing.T) {
	tests := []struct {
		name     string
		ctx      context.Context
		expected string
	}{
		{
			name:     "returns correlation ID when present",
			ctx:      WithCorrelationID(context.Background(), "req-123"),
			expected: "req-123",
		},
		{
			name:     "returns empty string when not present",
			ctx:      context.Background(),
			expected: "",
		},
		{
			name:     "returns empty string for nil value",
			ctx:      context.WithValue(context.Background(), CorrelationIDKey, nil),
			expected: "",
		},
		{
			name:     "returns empty string for wrong type",
			ctx:      context.WithValue(context.Background(), CorrelationIDKey, 123),
			expected: "",
		},
		{
			name:     "ignores plain string keys",
			ctx:      context.WithValue(context.Background(), "correlation_id", "other"),
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCorrelationID(tt.ctx); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestEnsureCorrelationID_KeepsExisting(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "req-1")

	got, id := EnsureCorrelationID(ctx)
	if id != "req-1" {
		t.Errorf("expected req-1, got %q", id)
	}
	if got != ctx {
		t.Error("expected context to be returned unchanged")
	}
}

func TestEnsureCorrelationID_Generates(t *testing.T) {
	ctx, id := EnsureCorrelationID(context.Background())

	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("expected a UUID, got %q: %v", id, err)
	}
	if GetCorrelationID(ctx) != id {
		t.Errorf("expected context to carry %q", id)
	}

	_, other := EnsureCorrelationID(context.Background())
	if other == id {
		t.Error("expected distinct IDs for distinct contexts")
	}
}
