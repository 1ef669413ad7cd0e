package http

import (
	"net/http"
	"time"
)

const defaultTimeout = 30 * time.Second

// ClientConfig holds configuration for plain HTTP clients.
type ClientConfig struct {
	Timeout         time.Duration     // Default 30s
	MaxConnsPerHost int               // Default 50
	Transport       http.RoundTripper // Overrides the pooled transport
}

// NewClient creates an HTTP client on a pooled transport. A nil config uses the defaults.
func NewClient(cfg *ClientConfig) *http.Client {
	if cfg == nil {
		cfg = &ClientConfig{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	transport := cfg.Transport
	if transport == nil {
		transport = newPooledTransport(cfg.MaxConnsPerHost)
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// newPooledTransport keeps up to maxConns connections per host alive for reuse.
func newPooledTransport(maxConns int) *http.Transport {
	if maxConns <= 0 {
		maxConns = defaultMaxConnsPerHost
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   maxConns,
		MaxConnsPerHost:       maxConns,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
