package swish

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/kevin07696/swish-payment-service/internal/adapters/ports"
	pkgerrors "github.com/kevin07696/swish-payment-service/pkg/errors"
	pkghttp "github.com/kevin07696/swish-payment-service/pkg/http"
)

// Credentials locates the trust material for one merchant
type Credentials struct {
	BundlePath string
	Passphrase string
	RootCAPath string
}

// key identifies identical credentials without keeping the passphrase in the map
func (c Credentials) key() string {
	h := sha256.New()
	h.Write([]byte(c.BundlePath))
	h.Write([]byte{0})
	h.Write([]byte(c.Passphrase))
	h.Write([]byte{0})
	h.Write([]byte(c.RootCAPath))
	return hex.EncodeToString(h.Sum(nil))
}

type cachedChannel struct {
	channel  *Channel
	notAfter time.Time
}

// ChannelCache builds each channel once per distinct Credentials and reuses it for
// every later payment. Failed builds are not cached, so a fixed bundle is picked up
// on the next call.
type ChannelCache struct {
	mu       sync.Mutex
	channels map[string]*cachedChannel

	clientConfig *pkghttp.HTTPClientConfig
	timeout      time.Duration
	logger       ports.Logger

	loadIdentity func(bundlePath, passphrase string) (*ClientIdentity, error)
}

// NewChannelCache creates an empty cache. timeout bounds every single provider call.
func NewChannelCache(clientConfig *pkghttp.HTTPClientConfig, timeout time.Duration, logger ports.Logger) *ChannelCache {
	if clientConfig == nil {
		clientConfig = pkghttp.SwishClientConfig()
	}
	return &ChannelCache{
		channels:     make(map[string]*cachedChannel),
		clientConfig: clientConfig,
		timeout:      timeout,
		logger:       logger,
		loadIdentity: LoadIdentity,
	}
}

// Get returns the channel for creds, loading the identity and building the channel on first use
func (c *ChannelCache) Get(ctx context.Context, creds Credentials) (*Channel, error) {
	key := creds.key()

	c.mu.Lock()
	defer c.mu.Unlock()

	if cached, ok := c.channels[key]; ok {
		return cached.channel, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, pkgerrors.NewChannelError("CHANNEL_CANCELLED", "request ended before the channel was built", err)
	}

	identity, err := c.loadIdentity(creds.BundlePath, creds.Passphrase)
	if err != nil {
		if c.logger != nil {
			c.logger.Error("failed to load Swish credentials",
				ports.String("bundle_path", creds.BundlePath),
				ports.Err(err),
			)
		}
		return nil, err
	}

	channel, err := BuildChannel(identity, creds.RootCAPath, c.clientConfig, c.timeout, c.logger)
	if err != nil {
		if c.logger != nil {
			c.logger.Error("failed to build Swish channel",
				ports.String("root_ca_path", creds.RootCAPath),
				ports.Err(err),
			)
		}
		return nil, err
	}

	c.channels[key] = &cachedChannel{channel: channel, notAfter: identity.NotAfter()}
	return channel, nil
}

// CertificateExpiry reports the merchant certificate expiry for creds once its channel exists
func (c *ChannelCache) CertificateExpiry(creds Credentials) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cached, ok := c.channels[creds.key()]
	if !ok {
		return time.Time{}, false
	}
	return cached.notAfter, true
}

// Ready reports whether a channel for creds has been built
func (c *ChannelCache) Ready(creds Credentials) bool {
	_, ok := c.CertificateExpiry(creds)
	return ok
}
