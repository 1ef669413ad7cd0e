package http

import (
	"net/http"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name     string
		config   *ClientConfig
		validate func(t *testing.T, client *http.Client)
	}{
		{
			name:   "nil config uses defaults",
			config: nil,
			validate: func(t *testing.T, client *http.Client) {
				if client.Timeout != 30*time.Second {
					t.Errorf("expected default timeout 30s, got %v", client.Timeout)
				}
				transport, ok := client.Transport.(*http.Transport)
				if !ok {
					t.Fatalf("expected pooled *http.Transport, got %T", client.Transport)
				}
				if transport.MaxConnsPerHost != 50 {
					t.Errorf("expected 50 connections per host, got %d", transport.MaxConnsPerHost)
				}
			},
		},
		{
			name:   "custom timeout and pool size",
			config: &ClientConfig{Timeout: 10 * time.Second, MaxConnsPerHost: 4},
			validate: func(t *testing.T, client *http.Client) {
				if client.Timeout != 10*time.Second {
					t.Errorf("expected timeout 10s, got %v", client.Timeout)
				}
				if got := client.Transport.(*http.Transport).MaxIdleConnsPerHost; got != 4 {
					t.Errorf("expected 4 idle connections per host, got %d", got)
				}
			},
		},
		{
			name:   "custom transport",
			config: &ClientConfig{Transport: http.DefaultTransport},
			validate: func(t *testing.T, client *http.Client) {
				if client.Transport != http.DefaultTransport {
					t.Error("expected custom transport to be used")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.validate(t, NewClient(tt.config))
		})
	}
}
