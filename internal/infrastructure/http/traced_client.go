package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"selsup/crptgateway/internal/core/audit"
	ctxutil "selsup/crptgateway/internal/infrastructure/context"
	"selsup/crptgateway/internal/infrastructure/security"
)

const (
	defaultMaxBodySize     = 102400
	defaultMaxConnsPerHost = 50
	auditSaveTimeout       = 10 * time.Second
)

// TracedClient wraps an HTTP client to log every exchange, propagate the correlation ID
// and persist a sanitized audit record.
type TracedClient struct {
	client       *http.Client
	log          *slog.Logger
	auditRepo    audit.Repository
	provider     string
	auditEnabled bool
	logReqBody   bool
	logRespBody  bool
	maxBodySize  int

	pending sync.WaitGroup
}

// TracedClientConfig holds configuration for the traced HTTP client.
type TracedClientConfig struct {
	Timeout         time.Duration
	AuditEnabled    bool
	LogRequestBody  bool
	LogResponseBody bool
	MaxBodySize     int               // Bytes kept per sanitized body (default 100KB)
	MaxConnsPerHost int               // Default 50
	Transport       http.RoundTripper // Overrides the pooled transport
}

// NewTracedClient creates a traced HTTP client with connection pooling.
// auditRepo may be nil, in which case exchanges are only logged.
func NewTracedClient(cfg *TracedClientConfig, log *slog.Logger, auditRepo audit.Repository, provider string) *TracedClient {
	maxBodySize := cfg.MaxBodySize
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxBodySize
	}

	transport := cfg.Transport
	if transport == nil {
		transport = newPooledTransport(cfg.MaxConnsPerHost)
	}

	return &TracedClient{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		log:          log,
		auditRepo:    auditRepo,
		provider:     provider,
		auditEnabled: cfg.AuditEnabled,
		logReqBody:   cfg.LogRequestBody,
		logRespBody:  cfg.LogResponseBody,
		maxBodySize:  maxBodySize,
	}
}

// exchange is what Do captured about one request.
type exchange struct {
	correlationID string
	operation     string
	req           *http.Request
	resp          *http.Response
	err           error
	duration      time.Duration
	requestBody   []byte
	responseBody  []byte
}

// Do executes req, logging it and persisting its audit record asynchronously.
// Both bodies are buffered so the caller can still read the response.
func (c *TracedClient) Do(req *http.Request) (*http.Response, error) {
	ctx, correlationID := ctxutil.EnsureCorrelationID(req.Context())
	if ctx != req.Context() {
		req = req.WithContext(ctx)
	}
	req.Header.Set("X-Correlation-ID", correlationID)

	ex := exchange{
		correlationID: correlationID,
		operation:     operationName(req),
		req:           req,
	}

	if req.Body != nil && req.Body != http.NoBody {
		body, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			c.log.ErrorContext(ctx, "failed to read request body for tracing",
				"error", err,
				"correlation_id", correlationID,
			)
		}
		ex.requestBody = body
		req.Body = io.NopCloser(bytes.NewReader(body))
	}

	c.logRequest(ctx, &ex)

	start := time.Now()
	ex.resp, ex.err = c.client.Do(req)
	ex.duration = time.Since(start)

	if ex.resp != nil && ex.resp.Body != nil {
		body, err := io.ReadAll(ex.resp.Body)
		_ = ex.resp.Body.Close()
		if err != nil && ex.err == nil {
			ex.err = err
		}
		ex.responseBody = body
		ex.resp.Body = io.NopCloser(bytes.NewReader(body))
	}

	c.logResponse(ctx, &ex)
	c.persistAsync(ex)

	if ex.err != nil && ex.resp != nil {
		// The response was consumed but its body failed midway.
		return nil, ex.err
	}
	return ex.resp, ex.err
}

// Wait blocks until pending audit writes finish or ctx is done.
func (c *TracedClient) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Client returns the underlying HTTP client.
func (c *TracedClient) Client() *http.Client {
	return c.client
}

func (c *TracedClient) logRequest(ctx context.Context, ex *exchange) {
	attrs := []any{
		"correlation_id", ex.correlationID,
		"provider", c.provider,
		"operation", ex.operation,
		"method", ex.req.Method,
		"url", security.SanitizeURL(ex.req.URL.String()),
	}
	if c.logReqBody && len(ex.requestBody) > 0 {
		attrs = append(attrs, "request_body", string(security.SanitizeBody(ex.requestBody, c.maxBodySize)))
	}
	c.log.InfoContext(ctx, "provider_request", attrs...)
}

func (c *TracedClient) logResponse(ctx context.Context, ex *exchange) {
	attrs := []any{
		"correlation_id", ex.correlationID,
		"provider", c.provider,
		"operation", ex.operation,
		"method", ex.req.Method,
		"url", security.SanitizeURL(ex.req.URL.String()),
		"duration_ms", ex.duration.Milliseconds(),
	}

	if ex.err != nil {
		attrs = append(attrs, "error", ex.err.Error())
		c.log.ErrorContext(ctx, "provider_request_failed", attrs...)
		return
	}

	attrs = append(attrs, "status", ex.resp.StatusCode, "response_size_bytes", len(ex.responseBody))
	if c.logRespBody && len(ex.responseBody) > 0 {
		attrs = append(attrs, "response_body", string(security.SanitizeBody(ex.responseBody, c.maxBodySize)))
	}

	switch {
	case ex.resp.StatusCode >= 500:
		c.log.ErrorContext(ctx, "provider_response", attrs...)
	case ex.resp.StatusCode >= 400:
		c.log.WarnContext(ctx, "provider_response", attrs...)
	default:
		c.log.InfoContext(ctx, "provider_response", attrs...)
	}
}

// persistAsync saves the record on a background context so it outlives the request.
func (c *TracedClient) persistAsync(ex exchange) {
	if !c.auditEnabled || c.auditRepo == nil {
		return
	}

	record := c.buildRecord(ex)
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		defer func() {
			if r := recover(); r != nil {
				c.log.Error("panic in audit persistence",
					"panic", r,
					"correlation_id", record.CorrelationID,
				)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), auditSaveTimeout)
		defer cancel()

		if err := c.auditRepo.Save(ctx, record); err != nil {
			c.log.Error("failed to persist audit record",
				"error", err,
				"correlation_id", record.CorrelationID,
				"provider", record.Provider,
				"operation", record.Operation,
				"response_status", record.ResponseStatus,
			)
			return
		}
		c.log.Debug("audit record persisted", "correlation_id", record.CorrelationID)
	}()
}

func (c *TracedClient) buildRecord(ex exchange) audit.Record {
	record := audit.Record{
		CorrelationID:  ex.correlationID,
		Provider:       c.provider,
		Operation:      ex.operation,
		RequestMethod:  ex.req.Method,
		RequestURL:     security.SanitizeURL(ex.req.URL.String()),
		RequestHeaders: security.SanitizeHeaders(ex.req.Header),
		RequestBody:    security.SanitizeBody(ex.requestBody, c.maxBodySize),
		DurationMs:     ex.duration.Milliseconds(),
	}

	if ex.resp != nil {
		status := ex.resp.StatusCode
		record.ResponseStatus = &status
		record.ResponseHeaders = security.SanitizeHeaders(ex.resp.Header)
		record.ResponseBody = security.SanitizeBody(ex.responseBody, c.maxBodySize)
		if status >= 200 && status < 300 {
			record.DocumentID = documentID(ex.responseBody)
		}
	}
	if ex.err != nil {
		record.ErrorMessage = ex.err.Error()
	}
	return record
}

// documentID reads the "value" field of a CRPT create reply.
func documentID(body []byte) string {
	var reply struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(body, &reply); err != nil {
		return ""
	}
	return reply.Value
}

// operationName is the last path segment, e.g. "create" for the documents endpoint.
func operationName(req *http.Request) string {
	path := strings.Trim(req.URL.Path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	if path == "" {
		return strings.ToLower(req.Method)
	}
	return path
}
