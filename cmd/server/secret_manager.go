package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kevin07696/swish-payment-service/internal/adapters/ports"
	"github.com/kevin07696/swish-payment-service/internal/adapters/secrets"
	"github.com/kevin07696/swish-payment-service/internal/config"
)

// resolvePassphrase returns the PKCS#12 passphrase. The secret backend is only
// contacted when SWISH_CERT_PASSPHRASE_SECRET is set and no passphrase is given directly.
// The returned closer releases the backend client and may be nil.
func resolvePassphrase(cfg *config.Config, logger *zap.Logger) (string, func() error) {
	if cfg.Swish.CertPassphrase != "" || cfg.Swish.PassphraseSecret == "" {
		return cfg.Swish.CertPassphrase, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sm, closer := initSecretManager(ctx, cfg.SecretManager, logger)

	passphrase, err := secrets.ResolvePassphrase(ctx, sm, cfg.Swish.CertPassphrase, cfg.Swish.PassphraseSecret, logger)
	if err != nil {
		logger.Fatal("Failed to resolve certificate passphrase",
			zap.String("backend", cfg.SecretManager.Backend),
			zap.String("secret", cfg.Swish.PassphraseSecret),
			zap.Error(err),
		)
	}
	return passphrase, closer
}

// initSecretManager initializes the backend selected by SECRET_MANAGER:
//   - local: files under SECRET_MANAGER_LOCAL_PATH
//   - aws: AWS Secrets Manager in AWS_REGION (AWS_SECRETS_ENDPOINT for LocalStack)
//   - vault: HashiCorp Vault KV v2 at VAULT_ADDR with VAULT_TOKEN
//   - gcp: Google Cloud Secret Manager in GCP_PROJECT_ID
func initSecretManager(ctx context.Context, cfg config.SecretManagerConfig, logger *zap.Logger) (ports.SecretManagerAdapter, func() error) {
	switch cfg.Backend {
	case "aws":
		awsCfg := secrets.DefaultAWSSecretsManagerConfig(cfg.AWSRegion)
		awsCfg.Endpoint = cfg.AWSEndpoint
		awsCfg.CacheTTL = cfg.CacheTTL

		sm, err := secrets.NewAWSSecretsManagerAdapter(ctx, awsCfg, logger)
		if err != nil {
			logger.Fatal("Failed to initialize AWS Secrets Manager",
				zap.String("region", cfg.AWSRegion),
				zap.Error(err),
			)
		}
		return sm, nil

	case "vault":
		vaultCfg := secrets.DefaultVaultConfig(cfg.VaultAddress)
		vaultCfg.Token = cfg.VaultToken
		vaultCfg.MountPath = cfg.VaultMountPath
		vaultCfg.CacheTTL = cfg.CacheTTL

		sm, err := secrets.NewVaultAdapter(ctx, vaultCfg, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Vault",
				zap.String("address", cfg.VaultAddress),
				zap.Error(err),
			)
		}
		return sm, nil

	case "gcp":
		gcpCfg := secrets.DefaultGCPSecretManagerConfig(cfg.GCPProjectID)
		gcpCfg.CacheTTL = cfg.CacheTTL

		sm, err := secrets.NewGCPSecretManager(ctx, gcpCfg, logger)
		if err != nil {
			logger.Fatal("Failed to initialize GCP Secret Manager",
				zap.String("project_id", cfg.GCPProjectID),
				zap.Error(err),
			)
		}
		return sm, sm.Close

	default:
		logger.Info("Using local secret manager", zap.String("path", cfg.LocalPath))
		return secrets.NewLocalSecretManager(cfg.LocalPath, logger), nil
	}
}
