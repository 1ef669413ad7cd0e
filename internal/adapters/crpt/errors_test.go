package crpt

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPError_Wrapping(t *testing.T) {
	unauthorized := &HTTPError{StatusCode: 401, Body: "token expired"}
	assert.ErrorIs(t, unauthorized, ErrAuthentication)
	assert.NotErrorIs(t, unauthorized, ErrAuthorization)

	assert.Equal(t, ErrAuthentication.Error()+": token expired", unauthorized.Error())

	forbidden := &HTTPError{StatusCode: 403}
	assert.ErrorIs(t, forbidden, ErrAuthorization)
	assert.Contains(t, forbidden.Error(), "403")
	assert.Equal(t, ErrAuthorization.Error(), forbidden.Error())

	forbiddenWithBody := &HTTPError{StatusCode: 403, Body: `{"error_message":"product group not enabled"}`}
	assert.Contains(t, forbiddenWithBody.Error(), "product group not enabled")

	serverErr := &HTTPError{StatusCode: 502, Body: "bad gateway"}
	assert.Nil(t, serverErr.Unwrap())
	assert.Equal(t, "crpt http error 502: bad gateway", serverErr.Error())
}

func TestTransportError_Wrapping(t *testing.T) {
	err := fmt.Errorf("submit: %w", &TransportError{Op: "execute request", Err: context.DeadlineExceeded})

	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	var transportErr *TransportError
	assert.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "execute request", transportErr.Op)
}

func TestConfigError(t *testing.T) {
	err := &ConfigError{Field: "request limit", Reason: "must be positive"}
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Equal(t, "invalid crpt client configuration: request limit must be positive", err.Error())
}

func TestEncodingError(t *testing.T) {
	cause := errors.New("boom")
	err := &EncodingError{Op: "encode document", Err: cause}
	assert.ErrorIs(t, err, ErrEncoding)
	assert.ErrorIs(t, err, cause)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transport", &TransportError{Op: "x", Err: errors.New("reset")}, true},
		{"429", &HTTPError{StatusCode: 429}, true},
		{"500", &HTTPError{StatusCode: 500}, true},
		{"503 wrapped", fmt.Errorf("ctx: %w", &HTTPError{StatusCode: 503}), true},
		{"400", &HTTPError{StatusCode: 400}, false},
		{"401", &HTTPError{StatusCode: 401}, false},
		{"encoding", &EncodingError{Op: "x", Err: errors.New("y")}, false},
		{"config", &ConfigError{Field: "f", Reason: "r"}, false},
		{"throttled", fmt.Errorf("%w: %w", ErrSlotUnavailable, context.Canceled), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestCategory(t *testing.T) {
	assert.Equal(t, "none", Category(nil))
	assert.Equal(t, "configuration", Category(&ConfigError{}))
	assert.Equal(t, "encoding", Category(&EncodingError{Err: errors.New("x")}))
	assert.Equal(t, "authentication", Category(&HTTPError{StatusCode: 401}))
	assert.Equal(t, "authorization", Category(&HTTPError{StatusCode: 403}))
	assert.Equal(t, "http", Category(&HTTPError{StatusCode: 500}))
	assert.Equal(t, "transport", Category(&TransportError{Err: errors.New("x")}))
	assert.Equal(t, "throttled", Category(fmt.Errorf("%w: %w", ErrSlotUnavailable, context.Canceled)))
	assert.Equal(t, "internal", Category(errors.New("other")))
}
