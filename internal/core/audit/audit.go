package audit

import (
	"context"
	"encoding/json"
	"time"
)

// Record is the audit trail of one outbound HTTP exchange with CRPT.
// Headers and bodies are stored sanitized; the signature never reaches storage.
type Record struct {
	ID              int64
	CorrelationID   string
	Provider        string
	Operation       string
	RequestMethod   string
	RequestURL      string
	RequestHeaders  map[string]string
	RequestBody     json.RawMessage
	ResponseStatus  *int
	ResponseHeaders map[string]string
	ResponseBody    json.RawMessage
	DocumentID      string // CRPT "value" of an accepted create reply
	DurationMs      int64
	ErrorMessage    string
	CreatedAt       time.Time
}

// Succeeded reports whether the exchange completed with a 2xx status.
func (r Record) Succeeded() bool {
	return r.ErrorMessage == "" && r.ResponseStatus != nil && *r.ResponseStatus >= 200 && *r.ResponseStatus < 300
}

// Repository persists and retrieves audit records.
type Repository interface {
	Save(ctx context.Context, record Record) error

	// FindByCorrelationID returns every exchange of one inbound request, oldest first.
	FindByCorrelationID(ctx context.Context, correlationID string) ([]Record, error)

	// FindByDocumentID returns the exchanges that produced a CRPT document id.
	FindByDocumentID(ctx context.Context, documentID string) ([]Record, error)

	// PurgeBefore deletes records created before cutoff and reports how many went.
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
