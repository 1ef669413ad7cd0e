package crpt

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"selsup/crptgateway/internal/core/document"
	infrahttp "selsup/crptgateway/internal/infrastructure/http"
	"selsup/crptgateway/internal/infrastructure/metrics"
)

const (
	// DefaultBaseURL is the CRPT "create document" endpoint.
	DefaultBaseURL = "https://ismp.crpt.ru/api/v3/lk/documents/create"
	// DefaultRequestTimeout bounds one HTTP exchange, measured after the slot is granted.
	DefaultRequestTimeout = 30 * time.Second

	tracerName = "selsup/crptgateway/internal/adapters/crpt"
)

// HTTPClient interface allows using both standard and traced HTTP clients.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds the values consumed at construction.
type Config struct {
	BaseURL        string        // Defaults to DefaultBaseURL
	Token          string        // Bearer token, trimmed; required
	Window         time.Duration // Time window of the request quota
	RequestLimit   int           // Requests allowed per Window; must be positive
	RequestTimeout time.Duration // Defaults to DefaultRequestTimeout
}

// Option customizes a Client.
type Option func(*Client)

// WithMetrics records submissions, throttle waits and request durations on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithTracer replaces the global OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// Client submits documents to CRPT. It is safe for concurrent use; the throttle is
// its only shared state, and each Client owns its own.
type Client struct {
	endpoint   string
	token      string
	timeout    time.Duration
	throttle   *Throttle
	httpClient HTTPClient
	log        *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

var _ document.Submitter = (*Client)(nil)

// NewClient validates cfg and builds a Client. A nil httpClient gets a plain client
// with the request timeout.
func NewClient(cfg Config, httpClient HTTPClient, log *slog.Logger, opts ...Option) (*Client, error) {
	throttle, err := NewThrottle(cfg.Window, cfg.RequestLimit)
	if err != nil {
		return nil, err
	}

	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, &ConfigError{Field: "auth token", Reason: "cannot be empty"}
	}

	endpoint, err := buildEndpoint(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	if httpClient == nil {
		httpClient = infrahttp.NewClient(&infrahttp.ClientConfig{Timeout: timeout})
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	c := &Client{
		endpoint:   endpoint,
		token:      token,
		timeout:    timeout,
		throttle:   throttle,
		httpClient: httpClient,
		log:        log.With("provider", "crpt"),
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func buildEndpoint(baseURL string) (string, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", &ConfigError{Field: "base url", Reason: fmt.Sprintf("%q is not an absolute URL", baseURL)}
	}
	q := u.Query()
	q.Set("pg", document.ProductGroupClothes)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// SubmitDocument waits for a rate limit slot, encodes the envelope and posts it.
// A 2xx reply without a value is returned without error; check IsSuccess.
// Failures are never retried.
func (c *Client) SubmitDocument(ctx context.Context, doc *document.Document, signature string) (*document.CreateDocumentResponse, error) {
	ctx, span := c.tracer.Start(ctx, "crpt.SubmitDocument", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	resp, err := c.submit(ctx, doc, signature)
	if err != nil {
		category := Category(err)
		c.metrics.ObserveSubmission(category)
		span.RecordError(err)
		span.SetStatus(codes.Error, category)
		span.SetAttributes(
			attribute.String("crpt.error_category", category),
			attribute.Bool("crpt.retryable", IsRetryable(err)),
		)
		return nil, err
	}

	span.SetAttributes(attribute.Bool("crpt.success", resp.IsSuccess()))
	if !resp.IsSuccess() {
		c.metrics.ObserveSubmission("rejected")
		c.log.WarnContext(ctx, "document rejected by crpt",
			"code", resp.Code,
			"error_message", resp.ErrorMessage,
			"description", resp.Description,
		)
		return resp, nil
	}

	c.metrics.ObserveSubmission("success")
	span.SetAttributes(attribute.String("crpt.document_id", resp.DocumentID()))
	c.log.InfoContext(ctx, "document registered", "document_id", resp.DocumentID())
	return resp, nil
}

func (c *Client) submit(ctx context.Context, doc *document.Document, signature string) (*document.CreateDocumentResponse, error) {
	waitStart := time.Now()
	if err := c.throttle.AwaitSlot(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSlotUnavailable, err)
	}
	waited := time.Since(waitStart)
	c.metrics.ObserveThrottleWait(waited)
	c.log.DebugContext(ctx, "rate limit slot granted", "waited_ms", waited.Milliseconds())

	body, err := EncodeEnvelope(doc, signature)
	if err != nil {
		c.log.ErrorContext(ctx, "failed to encode envelope", "error", err)
		return nil, err
	}

	return c.send(ctx, body)
}

// send performs one POST and classifies the reply.
func (c *Client) send(ctx context.Context, body []byte) (*document.CreateDocumentResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveRequest("error", time.Since(start))
		c.log.ErrorContext(ctx, "crpt request failed", "error", err)
		return nil, &TransportError{Op: "execute request", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.ObserveRequest("error", time.Since(start))
		return nil, &TransportError{Op: "read response body", Err: err}
	}
	c.metrics.ObserveRequest(statusClass(resp.StatusCode), time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		httpErr := &HTTPError{StatusCode: resp.StatusCode, Body: string(respBody)}
		c.log.WarnContext(ctx, "crpt returned non-2xx status",
			"status", resp.StatusCode,
			"category", Category(httpErr),
		)
		return nil, httpErr
	}

	return DecodeResponse(respBody)
}

// MinDelay is the spacing enforced between two request starts.
func (c *Client) MinDelay() time.Duration {
	return c.throttle.MinDelay()
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
