package testutil

import (
	"context"
	"sync"

	"selsup/crptgateway/internal/core/document"
)

// SubmitCall records one SubmitDocument invocation.
type SubmitCall struct {
	Document  *document.Document
	Signature string
}

// MockSubmitter is a mock implementation of document.Submitter for testing.
// It is safe for concurrent use.
type MockSubmitter struct {
	SubmitDocumentFunc func(ctx context.Context, doc *document.Document, signature string) (*document.CreateDocumentResponse, error)

	mu    sync.Mutex
	calls []SubmitCall
}

// SubmitDocument records the call and delegates to SubmitDocumentFunc if set,
// otherwise returns a successful response with id "doc-1".
func (m *MockSubmitter) SubmitDocument(ctx context.Context, doc *document.Document, signature string) (*document.CreateDocumentResponse, error) {
	m.mu.Lock()
	m.calls = append(m.calls, SubmitCall{Document: doc, Signature: signature})
	m.mu.Unlock()

	if m.SubmitDocumentFunc != nil {
		return m.SubmitDocumentFunc(ctx, doc, signature)
	}
	return &document.CreateDocumentResponse{Value: "doc-1"}, nil
}

// Calls returns a copy of the recorded invocations.
func (m *MockSubmitter) Calls() []SubmitCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SubmitCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// Ensure MockSubmitter implements document.Submitter interface.
var _ document.Submitter = (*MockSubmitter)(nil)
