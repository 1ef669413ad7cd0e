package crpt

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrConfiguration is returned by constructors for unusable arguments.
	ErrConfiguration = errors.New("invalid crpt client configuration")
	// ErrEncoding is returned when a document or envelope cannot be serialized.
	ErrEncoding = errors.New("crpt encoding failed")
	// ErrAuthentication is matched by HTTP 401 replies. CRPT tokens live 10 hours.
	ErrAuthentication = errors.New("crpt authentication failed (401): bearer token is invalid or expired")
	// ErrAuthorization is matched by HTTP 403 replies.
	ErrAuthorization = errors.New("crpt access denied (403): insufficient rights or product group not enabled")
	// ErrTransport is matched by network level failures, including the request timeout.
	ErrTransport = errors.New("crpt transport failure")
	// ErrSlotUnavailable is returned when the caller's context ends before a rate limit
	// slot is granted. No request was sent.
	ErrSlotUnavailable = errors.New("crpt rate limit slot not granted")
)

// ConfigError describes a rejected constructor argument.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid crpt client configuration: %s %s", e.Field, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfiguration }

// EncodingError wraps a serialization failure of the document, envelope or reply.
type EncodingError struct {
	Op  string
	Err error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("crpt encoding failed: %s: %v", e.Op, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

func (e *EncodingError) Is(target error) bool { return target == ErrEncoding }

// HTTPError is returned for every non-2xx reply. 401 and 403 also match
// ErrAuthentication and ErrAuthorization.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	var msg string
	switch e.StatusCode {
	case http.StatusUnauthorized:
		msg = ErrAuthentication.Error()
	case http.StatusForbidden:
		msg = ErrAuthorization.Error()
	default:
		return fmt.Sprintf("crpt http error %d: %s", e.StatusCode, e.Body)
	}
	if e.Body == "" {
		return msg
	}
	return msg + ": " + e.Body
}

func (e *HTTPError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return ErrAuthentication
	case http.StatusForbidden:
		return ErrAuthorization
	}
	return nil
}

// TransportError wraps DNS, connection and timeout failures.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("crpt transport failure: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() []error { return []error{ErrTransport, e.Err} }

// IsRetryable reports whether err is a transient failure worth retrying by the caller.
// The client itself never retries.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrTransport) {
		return true
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}
	return false
}

// Category returns a short label for err, used in logs and metrics.
func Category(err error) string {
	var httpErr *HTTPError
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrEncoding):
		return "encoding"
	case errors.Is(err, ErrAuthentication):
		return "authentication"
	case errors.Is(err, ErrAuthorization):
		return "authorization"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrSlotUnavailable):
		return "throttled"
	case errors.As(err, &httpErr):
		return "http"
	}
	return "internal"
}

// Classify returns Category(err) and IsRetryable(err) together.
func Classify(err error) (string, bool) {
	return Category(err), IsRetryable(err)
}
