package secrets

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kevin07696/swish-payment-service/internal/adapters/ports"
)

// ResolvePassphrase returns the credential bundle passphrase. A directly configured
// passphrase wins; otherwise secretPath is read from sm. Both empty yields an empty passphrase.
func ResolvePassphrase(ctx context.Context, sm ports.SecretManagerAdapter, direct, secretPath string, logger *zap.Logger) (string, error) {
	if direct != "" {
		if secretPath != "" {
			logger.Warn("Both a passphrase and a passphrase secret are configured, using the passphrase")
		}
		return direct, nil
	}
	if secretPath == "" {
		logger.Warn("No credential bundle passphrase configured")
		return "", nil
	}
	if sm == nil {
		return "", fmt.Errorf("passphrase secret %s configured without a secret manager", secretPath)
	}

	secret, err := sm.GetSecret(ctx, secretPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve credential bundle passphrase: %w", err)
	}

	logger.Info("Resolved credential bundle passphrase",
		zap.String("secret", secretPath),
		zap.String("version", secret.Version),
	)
	return secret.Value, nil
}
