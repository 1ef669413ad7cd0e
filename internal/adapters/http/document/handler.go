package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"selsup/crptgateway/internal/adapters/crpt"
	"selsup/crptgateway/internal/application/submission"
	coredocument "selsup/crptgateway/internal/core/document"
	httperrors "selsup/crptgateway/internal/infrastructure/http"
)

// SubmissionService is the application behaviour the handler depends on.
type SubmissionService interface {
	Submit(ctx context.Context, req submission.Request) (submission.Result, error)
	SubmitBatch(ctx context.Context, reqs []submission.Request) ([]submission.Result, error)
}

// Handler bridges HTTP traffic with the submission application service.
type Handler struct {
	service  SubmissionService
	validate *validator.Validate
	log      *slog.Logger
}

// NewHandler creates a new document HTTP handler.
func NewHandler(service SubmissionService, log *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(),
		log:      log,
	}
}

// SubmitRequest is the body of POST /api/v1/documents.
type SubmitRequest struct {
	ID        string                 `json:"id,omitempty"`
	Document  *coredocument.Document `json:"document" validate:"required"`
	Signature string                 `json:"signature" validate:"required"`
}

// BatchRequest is the body of POST /api/v1/documents/batch.
type BatchRequest struct {
	Items []SubmitRequest `json:"items" validate:"required,min=1,dive"`
}

// SubmitResponse describes the CRPT outcome of one document.
type SubmitResponse struct {
	ID           string `json:"id"`
	DocumentID   string `json:"documentId,omitempty"`
	Success      bool   `json:"success"`
	Code         string `json:"code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// BatchResponse lists per-item results in request order.
type BatchResponse struct {
	Results []submission.Result `json:"results"`
}

// Submit handles POST /api/v1/documents requests.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.service.Submit(r.Context(), toRequest(req))
	if err != nil {
		h.handleError(w, err)
		return
	}

	status := http.StatusCreated
	if !result.Success {
		status = http.StatusUnprocessableEntity
	}
	render.Status(r, status)
	render.JSON(w, r, SubmitResponse{
		ID:           result.ID,
		DocumentID:   result.DocumentID,
		Success:      result.Success,
		Code:         result.Code,
		ErrorMessage: result.Message,
	})
}

// SubmitBatch handles POST /api/v1/documents/batch requests.
func (h *Handler) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !h.decode(w, r, &req) {
		return
	}

	reqs := make([]submission.Request, len(req.Items))
	for i, item := range req.Items {
		reqs[i] = toRequest(item)
	}

	results, err := h.service.SubmitBatch(r.Context(), reqs)
	if err != nil {
		h.handleError(w, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, BatchResponse{Results: results})
}

// decode reads and validates the body, writing a 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		h.log.WarnContext(r.Context(), "failed to decode request body", "error", err)
		httperrors.WriteError(w, http.StatusBadRequest, "Invalid request body", []string{err.Error()}, h.log)
		return false
	}

	if err := h.validate.Struct(v); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			httperrors.WriteError(w, http.StatusBadRequest, "Validation failed", validationMessages(validationErrs), h.log)
			return false
		}
		httperrors.WriteError(w, http.StatusBadRequest, "Validation failed", []string{err.Error()}, h.log)
		return false
	}
	return true
}

// handleError maps submission errors to HTTP status codes.
func (h *Handler) handleError(w http.ResponseWriter, err error) {
	category := crpt.Category(err)

	switch {
	case errors.Is(err, submission.ErrInvalidRequest):
		httperrors.WriteError(w, http.StatusBadRequest, "Validation failed", []string{err.Error()}, h.log)
	case errors.Is(err, submission.ErrBatchTooLarge):
		httperrors.WriteError(w, http.StatusRequestEntityTooLarge, "Batch too large", []string{err.Error()}, h.log)
	case errors.Is(err, crpt.ErrEncoding):
		httperrors.WriteCategorizedError(w, http.StatusBadRequest, "Document could not be encoded", category, []string{err.Error()}, h.log)
	case errors.Is(err, crpt.ErrAuthentication):
		httperrors.WriteCategorizedError(w, http.StatusBadGateway, "CRPT rejected the credentials", category, []string{err.Error()}, h.log)
	case errors.Is(err, crpt.ErrAuthorization):
		httperrors.WriteCategorizedError(w, http.StatusBadGateway, "CRPT denied access", category, []string{err.Error()}, h.log)
	case errors.Is(err, crpt.ErrTransport):
		httperrors.WriteCategorizedError(w, http.StatusGatewayTimeout, "CRPT is unreachable", category, []string{err.Error()}, h.log)
	case errors.Is(err, crpt.ErrSlotUnavailable):
		httperrors.WriteCategorizedError(w, http.StatusServiceUnavailable, "Request cancelled before a rate limit slot was granted", category, []string{err.Error()}, h.log)
	case category == "http":
		httperrors.WriteCategorizedError(w, http.StatusBadGateway, "CRPT returned an error", category, []string{err.Error()}, h.log)
	default:
		h.log.Error("unexpected submission error", "error", err)
		httperrors.WriteError(w, http.StatusInternalServerError, "Internal server error", []string{"an internal error occurred"}, h.log)
	}
}

func toRequest(req SubmitRequest) submission.Request {
	return submission.Request{
		ID:        req.ID,
		Document:  req.Document,
		Signature: req.Signature,
	}
}

func validationMessages(errs validator.ValidationErrors) []string {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "min":
			msgs = append(msgs, fmt.Sprintf("field %s must have at least %s item(s)", err.Field(), err.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("field %s is not valid", err.Field()))
		}
	}
	return msgs
}
