package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorResponse represents a standardized error response format.
// Category carries the CRPT error class when the failure came from upstream.
type ErrorResponse struct {
	Message  string   `json:"message"`
	Category string   `json:"category,omitempty"`
	Errors   []string `json:"errors"`
}

// WriteError writes a standardized JSON error response to the HTTP response writer.
func WriteError(w http.ResponseWriter, statusCode int, message string, errors []string, log *slog.Logger) {
	WriteCategorizedError(w, statusCode, message, "", errors, log)
}

// WriteCategorizedError is WriteError with an error category attached.
func WriteCategorizedError(w http.ResponseWriter, statusCode int, message, category string, errors []string, log *slog.Logger) {
	if errors == nil {
		errors = []string{}
	}
	response := ErrorResponse{
		Message:  message,
		Category: category,
		Errors:   errors,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		// Status code is already written
		if log != nil {
			log.Error("failed to encode error response", "error", err)
		}
	}
}
