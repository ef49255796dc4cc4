package http

import (
	"crypto/tls"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPClient_RaisesMinTLSVersion(t *testing.T) {
	original := &tls.Config{MinVersion: tls.VersionTLS10, ServerName: "mss.cpc.getswish.net"}

	client := NewHTTPClient(SwishClientConfig(), 30*time.Second, original)

	transport, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, uint16(tls.VersionTLS12), transport.TLSClientConfig.MinVersion)
	assert.Equal(t, "mss.cpc.getswish.net", transport.TLSClientConfig.ServerName)
	assert.Equal(t, uint16(tls.VersionTLS10), original.MinVersion, "caller's config is not modified")
	assert.Equal(t, 30*time.Second, client.Timeout)
}

func TestNewHTTPClient_KeepsHigherTLSVersion(t *testing.T) {
	client := NewHTTPClient(SwishClientConfig(), time.Second, &tls.Config{MinVersion: tls.VersionTLS13})

	transport := client.Transport.(*http.Transport)
	assert.Equal(t, uint16(tls.VersionTLS13), transport.TLSClientConfig.MinVersion)
}

func TestNewHTTPClient_NilTLSConfig(t *testing.T) {
	cfg := SwishClientConfig()

	client := NewHTTPClient(cfg, time.Second, nil)

	transport := client.Transport.(*http.Transport)
	require.NotNil(t, transport.TLSClientConfig)
	assert.Nil(t, transport.TLSClientConfig.RootCAs)
	assert.Equal(t, cfg.MaxIdleConnsPerHost, transport.MaxIdleConnsPerHost)
	assert.Equal(t, cfg.IdleConnTimeout, transport.IdleConnTimeout)
}

func TestNewHTTPClient_DoesNotFollowRedirects(t *testing.T) {
	client := NewHTTPClient(SwishClientConfig(), time.Second, nil)

	require.NotNil(t, client.CheckRedirect)
	assert.ErrorIs(t, client.CheckRedirect(nil, nil), http.ErrUseLastResponse)
}
