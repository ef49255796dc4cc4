package security

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kevin07696/swish-payment-service/internal/adapters/ports"
)

func TestZapLoggerAdapter_ConvertsFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewZapLogger(zap.New(core)).Named("swish")

	logger.Warn("poll attempt failed",
		ports.String("handle", "https://example/paymentrequests/1"),
		ports.Int("attempt", 3),
		ports.Duration("elapsed", 2*time.Second),
		ports.Err(errors.New("connection reset")),
	)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "swish", entry.LoggerName)
	assert.Equal(t, zapcore.WarnLevel, entry.Level)

	fields := entry.ContextMap()
	assert.Equal(t, "https://example/paymentrequests/1", fields["handle"])
	assert.Equal(t, int64(3), fields["attempt"])
	assert.Equal(t, 2*time.Second, fields["elapsed"])
	assert.Equal(t, "connection reset", fields["error"])
}
