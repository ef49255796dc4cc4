package swish

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevin07696/swish-payment-service/internal/testutil/fixtures"
	pkgerrors "github.com/kevin07696/swish-payment-service/pkg/errors"
	"github.com/kevin07696/swish-payment-service/test/mocks"
)

func TestChannelCache_BuildsOncePerCredentials(t *testing.T) {
	material := fixtures.NewTLSMaterial(t)
	cache := NewChannelCache(nil, 5*time.Second, mocks.NewMockLogger())

	var loads int32
	cache.loadIdentity = func(bundlePath, passphrase string) (*ClientIdentity, error) {
		atomic.AddInt32(&loads, 1)
		return LoadIdentity(bundlePath, passphrase)
	}

	creds := Credentials{
		BundlePath: material.BundlePath,
		Passphrase: fixtures.TestPassphrase,
		RootCAPath: material.RootCAPath,
	}

	const workers = 20
	channels := make([]*Channel, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			channel, err := cache.Get(context.Background(), creds)
			assert.NoError(t, err)
			channels[i] = channel
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&loads))
	for _, channel := range channels {
		assert.Same(t, channels[0], channel)
	}

	assert.True(t, cache.Ready(creds))
	notAfter, ok := cache.CertificateExpiry(creds)
	require.True(t, ok)
	assert.Equal(t, material.ClientLeaf.NotAfter, notAfter)
}

func TestChannelCache_DistinctCredentials(t *testing.T) {
	material := fixtures.NewTLSMaterial(t)
	other := fixtures.NewTLSMaterial(t)
	cache := NewChannelCache(nil, 5*time.Second, nil)

	first, err := cache.Get(context.Background(), Credentials{
		BundlePath: material.BundlePath, Passphrase: fixtures.TestPassphrase, RootCAPath: material.RootCAPath,
	})
	require.NoError(t, err)

	second, err := cache.Get(context.Background(), Credentials{
		BundlePath: other.BundlePath, Passphrase: fixtures.TestPassphrase, RootCAPath: other.RootCAPath,
	})
	require.NoError(t, err)

	assert.NotSame(t, first, second)
}

func TestChannelCache_FailuresAreNotCached(t *testing.T) {
	material := fixtures.NewTLSMaterial(t)
	logger := mocks.NewMockLogger()
	cache := NewChannelCache(nil, 5*time.Second, logger)

	var loads int32
	cache.loadIdentity = func(bundlePath, passphrase string) (*ClientIdentity, error) {
		if atomic.AddInt32(&loads, 1) == 1 {
			return nil, pkgerrors.NewCredentialError("BUNDLE_UNREADABLE", "transient", nil)
		}
		return LoadIdentity(bundlePath, passphrase)
	}

	creds := Credentials{
		BundlePath: material.BundlePath,
		Passphrase: fixtures.TestPassphrase,
		RootCAPath: material.RootCAPath,
	}

	_, err := cache.Get(context.Background(), creds)
	require.Error(t, err)
	assert.True(t, errors.Is(err, pkgerrors.ErrCredential))
	assert.False(t, cache.Ready(creds))
	assert.Len(t, logger.ErrorCalls, 1)

	channel, err := cache.Get(context.Background(), creds)
	require.NoError(t, err)
	assert.NotNil(t, channel)
	assert.Equal(t, int32(2), atomic.LoadInt32(&loads))
}

func TestChannelCache_ChannelError(t *testing.T) {
	material := fixtures.NewTLSMaterial(t)
	cache := NewChannelCache(nil, 5*time.Second, nil)

	_, err := cache.Get(context.Background(), Credentials{
		BundlePath: material.BundlePath,
		Passphrase: fixtures.TestPassphrase,
		RootCAPath: material.BundlePath, // not PEM
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, pkgerrors.ErrChannel))
}

func TestCredentialsKey_HidesPassphrase(t *testing.T) {
	creds := Credentials{BundlePath: "/certs/merchant.p12", Passphrase: "s3cret", RootCAPath: "/certs/root.pem"}

	key := creds.key()
	assert.NotContains(t, key, "s3cret")
	assert.Len(t, key, 64)

	changed := creds
	changed.Passphrase = "other"
	assert.NotEqual(t, key, changed.key())
}

func TestChannelCache_CancelledContext(t *testing.T) {
	material := fixtures.NewTLSMaterial(t)
	cache := NewChannelCache(nil, 5*time.Second, nil)
	creds := Credentials{
		BundlePath: material.BundlePath,
		Passphrase: fixtures.TestPassphrase,
		RootCAPath: material.RootCAPath,
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := cache.Get(ctx, creds)
	require.Error(t, err)
	assert.True(t, errors.Is(err, pkgerrors.ErrChannel))
	assert.True(t, errors.Is(err, context.Canceled))

	var stageErr *pkgerrors.StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, "CHANNEL_CANCELLED", stageErr.Code)
	assert.False(t, cache.Ready(creds))
}
