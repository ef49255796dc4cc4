package secrets

import (
	"context"
	"fmt"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"

	"github.com/kevin07696/swish-payment-service/internal/adapters/ports"
)

// GCPSecretManagerConfig contains configuration for GCP Secret Manager
type GCPSecretManagerConfig struct {
	ProjectID string        // GCP Project ID (e.g., "my-project-123")
	CacheTTL  time.Duration // How long to cache secrets in memory (default: 5 minutes)
}

// DefaultGCPSecretManagerConfig returns sensible defaults for GCP Secret Manager
func DefaultGCPSecretManagerConfig(projectID string) *GCPSecretManagerConfig {
	return &GCPSecretManagerConfig{
		ProjectID: projectID,
		CacheTTL:  5 * time.Minute,
	}
}

// secretVersionAccessor is the part of the GCP client the adapter uses
type secretVersionAccessor interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
}

// GCPSecretManager implements ports.SecretManagerAdapter for Google Cloud Secret Manager
type GCPSecretManager struct {
	client    secretVersionAccessor
	closer    func() error
	projectID string
	logger    *zap.Logger
	cache     *secretCache
}

// NewGCPSecretManager creates a new GCP Secret Manager adapter with in-memory caching.
// Credentials come from GOOGLE_APPLICATION_CREDENTIALS, workload identity or the default application credentials.
func NewGCPSecretManager(ctx context.Context, cfg *GCPSecretManagerConfig, logger *zap.Logger) (*GCPSecretManager, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("GCP project ID is required")
	}

	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCP Secret Manager client: %w", err)
	}

	logger.Info("GCP Secret Manager initialized",
		zap.String("project_id", cfg.ProjectID),
		zap.Duration("cache_ttl", cfg.CacheTTL),
	)

	sm := newGCPSecretManager(client, cfg, logger)
	sm.closer = client.Close
	return sm, nil
}

func newGCPSecretManager(client secretVersionAccessor, cfg *GCPSecretManagerConfig, logger *zap.Logger) *GCPSecretManager {
	return &GCPSecretManager{
		client:    client,
		closer:    func() error { return nil },
		projectID: cfg.ProjectID,
		logger:    logger,
		cache:     newSecretCache(cfg.CacheTTL),
	}
}

// Close closes the GCP Secret Manager client
func (sm *GCPSecretManager) Close() error {
	return sm.closer()
}

// GetSecret retrieves the latest version of a secret.
// Path "swish-cert-passphrase" resolves to projects/{project_id}/secrets/swish-cert-passphrase/versions/latest
func (sm *GCPSecretManager) GetSecret(ctx context.Context, path string) (*ports.Secret, error) {
	if cached := sm.cache.get(path); cached != nil {
		sm.logger.Debug("Secret cache hit", zap.String("path", path))
		return cached, nil
	}

	secret, err := sm.access(ctx, path, "latest")
	if err != nil {
		return nil, err
	}

	sm.cache.set(path, secret)
	return secret, nil
}

// GetSecretVersion retrieves a specific version of a secret
func (sm *GCPSecretManager) GetSecretVersion(ctx context.Context, path string, version string) (*ports.Secret, error) {
	return sm.access(ctx, path, version)
}

func (sm *GCPSecretManager) access(ctx context.Context, path, version string) (*ports.Secret, error) {
	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/%s", sm.projectID, path, version)

	result, err := sm.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		sm.logger.Error("Failed to access GCP secret",
			zap.String("path", path),
			zap.String("secret_name", secretName),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to access GCP secret %s: %w", path, err)
	}

	sm.logger.Info("Secret fetched from GCP",
		zap.String("path", path),
		zap.String("version", extractVersionFromName(result.GetName())),
	)

	return &ports.Secret{
		Value:   string(result.GetPayload().GetData()),
		Version: extractVersionFromName(result.GetName()),
		Metadata: map[string]string{
			"gcp_project_id": sm.projectID,
			"gcp_secret":     path,
		},
	}, nil
}

// extractVersionFromName returns the trailing version of projects/{p}/secrets/{s}/versions/{v}
func extractVersionFromName(name string) string {
	if i := strings.LastIndex(name, "/versions/"); i >= 0 {
		return name[i+len("/versions/"):]
	}
	return "unknown"
}
