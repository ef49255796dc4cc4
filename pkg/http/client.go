package http

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// HTTPClientConfig holds HTTP client configuration
type HTTPClientConfig struct {
	// Connection pooling
	MaxIdleConns        int           // Total idle connections across all hosts
	MaxIdleConnsPerHost int           // Idle connections per host
	MaxConnsPerHost     int           // Maximum connections per host (including active)
	IdleConnTimeout     time.Duration // How long idle connections stay alive

	// Timeouts
	DialTimeout           time.Duration // TCP connection timeout
	TLSHandshakeTimeout   time.Duration // TLS handshake timeout
	ResponseHeaderTimeout time.Duration // Waiting for response headers
	ExpectContinueTimeout time.Duration // 100-continue timeout

	// Keep-alive
	DisableKeepAlives bool
	KeepAlive         time.Duration

	// Compression
	DisableCompression bool

	// TLS
	MinTLSVersion uint16
}

// SwishClientConfig returns config for the Swish commerce API.
// A single host is polled every few seconds per payment, so idle connections are
// kept long enough to survive the poll interval and skip a mutual TLS handshake per call.
func SwishClientConfig() *HTTPClientConfig {
	return &HTTPClientConfig{
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 50,
		MaxConnsPerHost:     100,
		IdleConnTimeout:     90 * time.Second,

		DialTimeout:           10 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		DisableKeepAlives: false,
		KeepAlive:         60 * time.Second,

		DisableCompression: false,

		MinTLSVersion: tls.VersionTLS12,
	}
}

// NewHTTPClient creates an HTTP client with the given configuration.
// tlsConfig carries the certificates and trust roots; its MinVersion is raised to
// cfg.MinTLSVersion when lower. A nil tlsConfig uses the system roots.
// Redirects are never followed.
func NewHTTPClient(cfg *HTTPClientConfig, timeout time.Duration, tlsConfig *tls.Config) *http.Client {
	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: cfg.KeepAlive,
	}

	if tlsConfig == nil {
		tlsConfig = &tls.Config{}
	} else {
		tlsConfig = tlsConfig.Clone()
	}
	if tlsConfig.MinVersion < cfg.MinTLSVersion {
		tlsConfig.MinVersion = cfg.MinTLSVersion
	}

	transport := &http.Transport{
		Proxy:       http.ProxyFromEnvironment,
		DialContext: dialer.DialContext,

		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,

		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		ExpectContinueTimeout: cfg.ExpectContinueTimeout,

		DisableKeepAlives:  cfg.DisableKeepAlives,
		DisableCompression: cfg.DisableCompression,

		TLSClientConfig: tlsConfig,

		ForceAttemptHTTP2: true,
	}

	return &http.Client{
		Transport:     transport,
		Timeout:       timeout,
		CheckRedirect: noRedirects,
	}
}

// noRedirects hands 3xx responses back to the caller. A redirected POST must not
// turn into a GET, and status requests must not leave the provider's host.
func noRedirects(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}
