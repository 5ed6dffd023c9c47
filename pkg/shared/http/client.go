// Package http builds pre-configured *http.Client instances for the
// control plane's outbound callers (metrics store, LLM, Swagger probing).
// Every caller shares one client for its concern instead of allocating one
// per request.
package http

import (
	"crypto/tls"
	"net/http"
	"time"
)

// ClientConfig tunes the transport behind a shared *http.Client.
type ClientConfig struct {
	Timeout                time.Duration
	MaxRetries             int
	DisableSSLVerification bool
	MaxIdleConns           int
	IdleConnTimeout        time.Duration
	TLSHandshakeTimeout    time.Duration
	ResponseHeaderTimeout  time.Duration
}

// DefaultClientConfig is a conservative general-purpose preset.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:               30 * time.Second,
		MaxRetries:            3,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
	}
}

// NewClient builds an *http.Client from cfg.
func NewClient(cfg ClientConfig) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:          cfg.MaxIdleConns,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
	}
	if cfg.DisableSSLVerification {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 -- opt-in for dev/self-signed clusters
	}
	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
	}
}

// NewClientWithTimeout builds a client with the default preset's transport
// tuning but a caller-specified timeout.
func NewClientWithTimeout(timeout time.Duration) *http.Client {
	cfg := DefaultClientConfig()
	cfg.Timeout = timeout
	return NewClient(cfg)
}

// NewDefaultClient builds a client from DefaultClientConfig().
func NewDefaultClient() *http.Client {
	return NewClient(DefaultClientConfig())
}

// SlackClientConfig is a short-timeout, low-retry preset for chat-ops
// notification callers.
func SlackClientConfig() ClientConfig {
	cfg := DefaultClientConfig()
	cfg.Timeout = 10 * time.Second
	cfg.MaxRetries = 2
	return cfg
}

// PrometheusClientConfig tunes the metrics-store HTTP client: a long total
// timeout with a response-header timeout at half of it, so a stalled range
// query fails fast while streaming of the body still gets the full budget.
func PrometheusClientConfig(timeout time.Duration) ClientConfig {
	cfg := DefaultClientConfig()
	cfg.Timeout = timeout
	cfg.ResponseHeaderTimeout = timeout / 2
	return cfg
}

// LLMClientConfig tunes the analysis LLM client: response-header timeout at
// a third of the total, leaving the rest of the budget for token streaming.
func LLMClientConfig(timeout time.Duration) ClientConfig {
	cfg := DefaultClientConfig()
	cfg.Timeout = timeout
	cfg.ResponseHeaderTimeout = timeout / 3
	return cfg
}
