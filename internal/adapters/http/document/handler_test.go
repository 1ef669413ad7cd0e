package document

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"selsup/crptgateway/internal/adapters/crpt"
	"selsup/crptgateway/internal/application/submission"
	httperrors "selsup/crptgateway/internal/infrastructure/http"
	"selsup/crptgateway/internal/testutil"
)

type mockService struct {
	submitFunc      func(ctx context.Context, req submission.Request) (submission.Result, error)
	submitBatchFunc func(ctx context.Context, reqs []submission.Request) ([]submission.Result, error)
}

func (m *mockService) Submit(ctx context.Context, req submission.Request) (submission.Result, error) {
	if m.submitFunc != nil {
		return m.submitFunc(ctx, req)
	}
	return submission.Result{ID: req.ID, DocumentID: "doc-1", Success: true}, nil
}

func (m *mockService) SubmitBatch(ctx context.Context, reqs []submission.Request) ([]submission.Result, error) {
	if m.submitBatchFunc != nil {
		return m.submitBatchFunc(ctx, reqs)
	}
	return []submission.Result{}, nil
}

func validBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"id":        "ref-1",
		"document":  testutil.SampleDocument(),
		"signature": testutil.SampleSignature,
	})
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	return body
}

func post(h http.HandlerFunc, path string, body []byte) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h(w, testutil.NewJSONRequest(http.MethodPost, path, body))
	return w
}

func TestHandler_Submit_Created(t *testing.T) {
	var got submission.Request
	svc := &mockService{
		submitFunc: func(ctx context.Context, req submission.Request) (submission.Result, error) {
			got = req
			return submission.Result{ID: req.ID, DocumentID: "doc-123", Success: true}, nil
		},
	}
	handler := NewHandler(svc, testutil.NewNullLogger())

	w := post(handler.Submit, "/api/v1/documents", validBody(t))

	var response SubmitResponse
	testutil.DecodeJSON(t, w, http.StatusCreated, &response)
	if response.DocumentID != "doc-123" {
		t.Errorf("expected document id doc-123, got %q", response.DocumentID)
	}
	if !response.Success {
		t.Error("expected success to be true")
	}
	if got.ID != "ref-1" {
		t.Errorf("expected id ref-1, got %q", got.ID)
	}
	if got.Signature != testutil.SampleSignature {
		t.Errorf("expected signature to be forwarded, got %q", got.Signature)
	}
	if got.Document == nil || got.Document.RegDate == nil || got.Document.RegDate.String() != "2024-01-20" {
		t.Errorf("expected reg date 2024-01-20 to be decoded, got %+v", got.Document)
	}
	if len(got.Document.Products()) != 1 {
		t.Errorf("expected 1 product, got %d", len(got.Document.Products()))
	}
}

func TestHandler_Submit_Rejected(t *testing.T) {
	svc := &mockService{
		submitFunc: func(ctx context.Context, req submission.Request) (submission.Result, error) {
			return submission.Result{ID: req.ID, Code: "BAD", Message: "wrong inn"}, nil
		},
	}
	handler := NewHandler(svc, testutil.NewNullLogger())

	w := post(handler.Submit, "/api/v1/documents", validBody(t))

	var response SubmitResponse
	testutil.DecodeJSON(t, w, http.StatusUnprocessableEntity, &response)
	if response.Code != "BAD" || response.ErrorMessage != "wrong inn" {
		t.Errorf("expected code BAD and message, got %+v", response)
	}
}

func TestHandler_Submit_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"document":`},
		{"missing document", `{"signature":"sig"}`},
		{"missing signature", `{"document":{}}`},
		{"invalid date", `{"document":{"reg_date":"2024-13-01"},"signature":"sig"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			svc := &mockService{
				submitFunc: func(ctx context.Context, req submission.Request) (submission.Result, error) {
					called = true
					return submission.Result{}, nil
				},
			}
			handler := NewHandler(svc, testutil.NewNullLogger())

			w := post(handler.Submit, "/api/v1/documents", []byte(tt.body))

			if w.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", w.Code)
			}
			if called {
				t.Error("expected service not to be called")
			}
		})
	}
}

func TestHandler_Submit_ErrorMapping(t *testing.T) {
	tests := []struct {
		name             string
		err              error
		expectedStatus   int
		expectedCategory string
	}{
		{"encoding", &crpt.EncodingError{Op: "encode envelope", Err: errors.New("bad")}, http.StatusBadRequest, "encoding"},
		{"unauthorized", &crpt.HTTPError{StatusCode: 401}, http.StatusBadGateway, "authentication"},
		{"forbidden", &crpt.HTTPError{StatusCode: 403}, http.StatusBadGateway, "authorization"},
		{"server error", &crpt.HTTPError{StatusCode: 500, Body: "oops"}, http.StatusBadGateway, "http"},
		{"transport", &crpt.TransportError{Op: "execute request", Err: context.DeadlineExceeded}, http.StatusGatewayTimeout, "transport"},
		{"throttled", crpt.ErrSlotUnavailable, http.StatusServiceUnavailable, "throttled"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockService{
				submitFunc: func(ctx context.Context, req submission.Request) (submission.Result, error) {
					return submission.Result{ID: req.ID}, tt.err
				},
			}
			handler := NewHandler(svc, testutil.NewNullLogger())

			w := post(handler.Submit, "/api/v1/documents", validBody(t))

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}

			var response httperrors.ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if response.Category != tt.expectedCategory {
				t.Errorf("expected category %q, got %q", tt.expectedCategory, response.Category)
			}
		})
	}
}

func TestHandler_SubmitBatch(t *testing.T) {
	var got []submission.Request
	svc := &mockService{
		submitBatchFunc: func(ctx context.Context, reqs []submission.Request) ([]submission.Result, error) {
			got = reqs
			return []submission.Result{
				{ID: "a", DocumentID: "doc-a", Success: true},
				{ID: "b", Category: "transport", Retryable: true},
			}, nil
		},
	}
	handler := NewHandler(svc, testutil.NewNullLogger())

	body := `{"items":[{"id":"a","document":{},"signature":"s1"},{"id":"b","document":{},"signature":"s2"}]}`
	w := post(handler.SubmitBatch, "/api/v1/documents/batch", []byte(body))

	var response BatchResponse
	testutil.DecodeJSON(t, w, http.StatusOK, &response)
	if len(got) != 2 || got[1].Signature != "s2" {
		t.Errorf("expected 2 forwarded requests, got %+v", got)
	}
	if len(response.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(response.Results))
	}
	if !response.Results[1].Retryable || response.Results[1].Category != "transport" {
		t.Errorf("expected retryable transport failure, got %+v", response.Results[1])
	}
}

func TestHandler_SubmitBatch_Empty(t *testing.T) {
	handler := NewHandler(&mockService{}, testutil.NewNullLogger())

	w := post(handler.SubmitBatch, "/api/v1/documents/batch", []byte(`{"items":[]}`))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Items") {
		t.Errorf("expected validation message for Items, got %s", w.Body.String())
	}
}

func TestHandler_SubmitBatch_TooLarge(t *testing.T) {
	svc := &mockService{
		submitBatchFunc: func(ctx context.Context, reqs []submission.Request) ([]submission.Result, error) {
			return nil, submission.ErrBatchTooLarge
		},
	}
	handler := NewHandler(svc, testutil.NewNullLogger())

	body := `{"items":[{"document":{},"signature":"s1"}]}`
	w := post(handler.SubmitBatch, "/api/v1/documents/batch", []byte(body))

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected status 413, got %d", w.Code)
	}
}
