package swish

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/kevin07696/swish-payment-service/internal/adapters/ports"
	pkgerrors "github.com/kevin07696/swish-payment-service/pkg/errors"
	pkghttp "github.com/kevin07696/swish-payment-service/pkg/http"
)

// maxResponseBytes caps how much of a provider response is read into memory
const maxResponseBytes = 1 << 20

// ErrResponseTooLarge is returned when a provider response exceeds maxResponseBytes
var ErrResponseTooLarge = errors.New("provider response too large")

// Channel is a mutually authenticated connection to the provider.
// It holds no per-request state and is safe for concurrent use.
type Channel struct {
	client ports.HTTPClient
	logger ports.Logger
}

// NewChannel wraps an already configured HTTP client
func NewChannel(client ports.HTTPClient, logger ports.Logger) *Channel {
	return &Channel{
		client: client,
		logger: logger,
	}
}

// BuildChannel creates a channel that presents identity to the provider and only
// trusts servers chaining to rootCAPath or to a CA shipped in the identity bundle
func BuildChannel(identity *ClientIdentity, rootCAPath string, cfg *pkghttp.HTTPClientConfig, timeout time.Duration, logger ports.Logger) (*Channel, error) {
	roots, err := NewTrustAnchor(identity, rootCAPath)
	if err != nil {
		return nil, err
	}

	if cfg == nil {
		cfg = pkghttp.SwishClientConfig()
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{identity.Certificate},
		RootCAs:      roots,
		MinVersion:   tls.VersionTLS12,
	}

	if logger != nil {
		logger.Info("built Swish channel",
			ports.String("subject", identity.Leaf.Subject.String()),
			ports.String("not_after", identity.NotAfter().Format(time.RFC3339)),
			ports.Int("bundled_ca_certs", len(identity.CACerts)),
		)
	}

	return NewChannel(pkghttp.NewHTTPClient(cfg, timeout, tlsConfig), logger), nil
}

// NewTrustAnchor builds the root pool from the bundled CA certificates plus every
// certificate in the PEM file at rootCAPath. System roots are not included.
func NewTrustAnchor(identity *ClientIdentity, rootCAPath string) (*x509.CertPool, error) {
	data, err := os.ReadFile(rootCAPath)
	if err != nil {
		return nil, pkgerrors.NewChannelError("ROOT_CA_UNREADABLE", fmt.Sprintf("failed to read root CA %s", rootCAPath), err)
	}

	pool := x509.NewCertPool()
	parsed := 0
	for block, rest := pem.Decode(data); block != nil; block, rest = pem.Decode(rest) {
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, pkgerrors.NewChannelError("ROOT_CA_INVALID", fmt.Sprintf("failed to parse certificate in %s", rootCAPath), err)
		}
		pool.AddCert(cert)
		parsed++
	}
	if parsed == 0 {
		return nil, pkgerrors.NewChannelError("ROOT_CA_EMPTY", fmt.Sprintf("no PEM certificate found in %s", rootCAPath), nil)
	}

	if identity != nil {
		for _, ca := range identity.CACerts {
			pool.AddCert(ca)
		}
	}

	return pool, nil
}

// Call sends a JSON request over the channel and returns the fully read response.
// payload is marshalled as the request body when non-nil.
func (c *Channel) Call(ctx context.Context, method ports.Method, url string, payload interface{}) (*ports.HTTPResponse, error) {
	if method != ports.MethodGet && method != ports.MethodPost {
		return nil, fmt.Errorf("unsupported method %v", method)
	}

	var body io.Reader
	if payload != nil {
		payloadBytes, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payloadBytes)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method.String(), url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	if c.logger != nil {
		c.logger.Debug("calling Swish",
			ports.String("method", method.String()),
			ports.String("url", url),
		)
	}

	startTime := time.Now()
	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", method, url, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(respBody) > maxResponseBytes {
		return nil, fmt.Errorf("%s %s: %w (over %d bytes)", method, url, ErrResponseTooLarge, maxResponseBytes)
	}

	if c.logger != nil {
		c.logger.Debug("Swish responded",
			ports.String("method", method.String()),
			ports.Int("status_code", httpResp.StatusCode),
			ports.Duration("elapsed", time.Since(startTime)),
		)
	}

	return &ports.HTTPResponse{
		StatusCode: httpResp.StatusCode,
		Body:       respBody,
		Headers:    httpResp.Header,
	}, nil
}
