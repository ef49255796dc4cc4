package secrets

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	vault "github.com/hashicorp/vault/api"
	"go.uber.org/zap"

	"github.com/kevin07696/swish-payment-service/internal/adapters/ports"
)

// defaultVaultField is read when a path does not name a field
const defaultVaultField = "value"

// VaultConfig contains configuration for HashiCorp Vault adapter
type VaultConfig struct {
	// Vault server address (e.g., "https://vault.example.com:8200")
	Address string

	// Authentication method: "token" or "approle"
	AuthMethod string

	// Token for token authentication
	Token string

	// AppRole credentials (if using AppRole auth)
	RoleID   string
	SecretID string

	// Vault namespace (Vault Enterprise)
	Namespace string

	// KV secrets engine mount path (default: "secret")
	MountPath string

	// KV version: "v1" or "v2" (default: "v2")
	KVVersion string

	// Cache TTL, zero disables caching
	CacheTTL time.Duration
}

// DefaultVaultConfig returns default configuration for Vault adapter
func DefaultVaultConfig(address string) *VaultConfig {
	return &VaultConfig{
		Address:    address,
		AuthMethod: "token",
		MountPath:  "secret",
		KVVersion:  "v2",
		CacheTTL:   5 * time.Minute,
	}
}

// vaultAdapter implements the SecretManagerAdapter port for HashiCorp Vault
type vaultAdapter struct {
	client *vault.Client
	config *VaultConfig
	logger *zap.Logger
	cache  *secretCache
}

// NewVaultAdapter creates a new HashiCorp Vault adapter
func NewVaultAdapter(ctx context.Context, cfg *VaultConfig, logger *zap.Logger) (ports.SecretManagerAdapter, error) {
	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = cfg.Address

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}

	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	if err := authenticateVault(ctx, client, cfg); err != nil {
		return nil, fmt.Errorf("failed to authenticate with Vault: %w", err)
	}

	logger.Info("Vault adapter initialized",
		zap.String("address", cfg.Address),
		zap.String("auth_method", cfg.AuthMethod),
		zap.String("mount_path", cfg.MountPath),
		zap.String("kv_version", cfg.KVVersion),
	)

	return &vaultAdapter{
		client: client,
		config: cfg,
		logger: logger,
		cache:  newSecretCache(cfg.CacheTTL),
	}, nil
}

// authenticateVault handles authentication with Vault
func authenticateVault(ctx context.Context, client *vault.Client, cfg *VaultConfig) error {
	switch cfg.AuthMethod {
	case "token", "":
		if cfg.Token == "" {
			return fmt.Errorf("token is required for token auth")
		}
		client.SetToken(cfg.Token)
		return nil

	case "approle":
		if cfg.RoleID == "" || cfg.SecretID == "" {
			return fmt.Errorf("role_id and secret_id are required for AppRole auth")
		}

		resp, err := client.Logical().WriteWithContext(ctx, "auth/approle/login", map[string]interface{}{
			"role_id":   cfg.RoleID,
			"secret_id": cfg.SecretID,
		})
		if err != nil {
			return fmt.Errorf("AppRole login failed: %w", err)
		}
		if resp == nil || resp.Auth == nil {
			return fmt.Errorf("AppRole login returned no auth info")
		}
		client.SetToken(resp.Auth.ClientToken)
		return nil

	default:
		return fmt.Errorf("unsupported auth method: %s", cfg.AuthMethod)
	}
}

// splitVaultPath separates "swish/merchant#passphrase" into the secret path and the field
func splitVaultPath(path string) (string, string) {
	if i := strings.LastIndex(path, "#"); i >= 0 && i < len(path)-1 {
		return path[:i], path[i+1:]
	}
	return strings.TrimSuffix(path, "#"), defaultVaultField
}

// GetSecret retrieves a secret field. Path format: "swish/merchant#passphrase";
// without a field the "value" key is read.
func (a *vaultAdapter) GetSecret(ctx context.Context, path string) (*ports.Secret, error) {
	if cached := a.cache.get(path); cached != nil {
		a.logger.Debug("Secret retrieved from cache", zap.String("path", path))
		return cached, nil
	}

	secret, err := a.read(ctx, path, 0)
	if err != nil {
		return nil, err
	}

	a.cache.set(path, secret)
	return secret, nil
}

// GetSecretVersion retrieves a specific version of a secret (KV v2 only)
func (a *vaultAdapter) GetSecretVersion(ctx context.Context, path string, version string) (*ports.Secret, error) {
	if a.config.KVVersion == "v1" {
		return nil, fmt.Errorf("GetSecretVersion requires KV v2")
	}

	v, err := strconv.Atoi(version)
	if err != nil || v <= 0 {
		return nil, fmt.Errorf("invalid Vault secret version %q", version)
	}
	return a.read(ctx, path, v)
}

// read fetches path at version; version 0 means latest
func (a *vaultAdapter) read(ctx context.Context, path string, version int) (*ports.Secret, error) {
	secretPath, field := splitVaultPath(path)

	a.logger.Info("Retrieving secret from Vault",
		zap.String("path", secretPath),
		zap.Int("version", version),
	)

	startTime := time.Now()
	var (
		kv  *vault.KVSecret
		err error
	)
	switch {
	case a.config.KVVersion == "v1":
		kv, err = a.client.KVv1(a.config.MountPath).Get(ctx, secretPath)
	case version > 0:
		kv, err = a.client.KVv2(a.config.MountPath).GetVersion(ctx, secretPath, version)
	default:
		kv, err = a.client.KVv2(a.config.MountPath).Get(ctx, secretPath)
	}
	if err != nil {
		a.logger.Error("Failed to retrieve secret from Vault",
			zap.String("path", secretPath),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to read secret %s from Vault: %w", secretPath, err)
	}

	a.logger.Info("Secret retrieved successfully",
		zap.String("path", secretPath),
		zap.Duration("elapsed", time.Since(startTime)),
	)

	value, ok := kv.Data[field].(string)
	if !ok || value == "" {
		return nil, fmt.Errorf("secret %s has no string field %q", secretPath, field)
	}

	result := &ports.Secret{
		Value:    value,
		Version:  "1",
		Metadata: make(map[string]string),
	}
	if kv.VersionMetadata != nil {
		result.Version = strconv.Itoa(kv.VersionMetadata.Version)
		result.CreatedAt = kv.VersionMetadata.CreatedTime.Format(time.RFC3339)
	}

	// Remaining string fields are non-secret metadata
	for k, v := range kv.Data {
		if str, ok := v.(string); ok && k != field {
			result.Metadata[k] = str
		}
	}

	return result, nil
}
