package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"selsup/crptgateway/internal/core/document"
)

const (
	defaultWorkers  = 4
	defaultMaxBatch = 100
)

// ErrBatchTooLarge is returned when a batch exceeds the configured maximum.
var ErrBatchTooLarge = errors.New("batch too large")

// ErrInvalidRequest is returned for a request without a document.
var ErrInvalidRequest = errors.New("invalid submission request")

// Classifier maps a submitter error to a category label and a retryable flag.
type Classifier func(err error) (category string, retryable bool)

// Config tunes the service. Zero values fall back to defaults.
type Config struct {
	Workers  int        // Concurrent submissions in a batch (default 4)
	MaxBatch int        // Largest accepted batch (default 100)
	Classify Classifier // Defaults to labelling every error "internal"
}

// Request is one document to submit.
type Request struct {
	ID        string // Optional caller reference; generated when empty
	Document  *document.Document
	Signature string
}

// Result is the outcome of one Request.
type Result struct {
	ID         string `json:"id"`
	DocumentID string `json:"documentId,omitempty"`
	Success    bool   `json:"success"`
	Code       string `json:"code,omitempty"`
	Message    string `json:"message,omitempty"`
	Category   string `json:"category,omitempty"`
	Retryable  bool   `json:"retryable,omitempty"`
	Err        error  `json:"-"`
}

// Service orchestrates document submission use cases.
type Service struct {
	submitter document.Submitter
	log       *slog.Logger
	workers   int
	maxBatch  int
	classify  Classifier
}

// NewService creates a submission service on top of submitter.
func NewService(submitter document.Submitter, log *slog.Logger, cfg Config) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = defaultMaxBatch
	}
	if cfg.Classify == nil {
		cfg.Classify = func(error) (string, bool) { return "internal", false }
	}
	return &Service{
		submitter: submitter,
		log:       log,
		workers:   cfg.Workers,
		maxBatch:  cfg.MaxBatch,
		classify:  cfg.Classify,
	}
}

// Submit sends one document. The returned error is the submitter's, unchanged;
// a reply without a document id is a Result with Success false and a nil error.
func (s *Service) Submit(ctx context.Context, req Request) (Result, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	result := Result{ID: req.ID}

	if req.Document == nil {
		err := fmt.Errorf("%w: document is required", ErrInvalidRequest)
		result.Category, result.Message, result.Err = "validation", err.Error(), err
		return result, err
	}

	resp, err := s.submitter.SubmitDocument(ctx, req.Document, req.Signature)
	if err != nil {
		result.Category, result.Retryable = s.classify(err)
		result.Message = err.Error()
		result.Err = err
		s.log.ErrorContext(ctx, "document submission failed",
			"id", req.ID,
			"category", result.Category,
			"retryable", result.Retryable,
			"error", err,
		)
		return result, err
	}

	result.DocumentID = resp.DocumentID()
	result.Success = resp.IsSuccess()
	result.Code = resp.Code
	result.Message = resp.ErrorMessage
	if !result.Success {
		s.log.WarnContext(ctx, "document not accepted",
			"id", req.ID,
			"code", resp.Code,
			"error_message", resp.ErrorMessage,
		)
		return result, nil
	}

	s.log.InfoContext(ctx, "document submitted", "id", req.ID, "document_id", result.DocumentID)
	return result, nil
}

// SubmitBatch submits every request concurrently, bounded by the worker limit.
// One failure never cancels the others; results keep the input order.
func (s *Service) SubmitBatch(ctx context.Context, reqs []Request) ([]Result, error) {
	if len(reqs) > s.maxBatch {
		return nil, fmt.Errorf("%w: %d items, maximum is %d", ErrBatchTooLarge, len(reqs), s.maxBatch)
	}

	results := make([]Result, len(reqs))
	g := new(errgroup.Group)
	g.SetLimit(s.workers)

	for i, req := range reqs {
		g.Go(func() error {
			results[i], _ = s.Submit(ctx, req)
			return nil
		})
	}
	_ = g.Wait()

	var failed int
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	s.log.InfoContext(ctx, "batch submitted", "total", len(reqs), "failed", failed, "workers", s.workers)

	return results, nil
}
