package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/kevin07696/swish-payment-service/internal/adapters/ports"
)

// localSecretManager implements SecretManagerAdapter using local filesystem
// WARNING: This is for development only. Use a managed backend in production.
type localSecretManager struct {
	basePath string
	logger   *zap.Logger
}

// NewLocalSecretManager creates a new local filesystem secret manager
func NewLocalSecretManager(basePath string, logger *zap.Logger) ports.SecretManagerAdapter {
	return &localSecretManager{
		basePath: basePath,
		logger:   logger,
	}
}

// GetSecret reads a secret file below the base path.
// Files hold either the plain value or {"value": ..., "tags": ..., "created_at": ...}.
func (m *localSecretManager) GetSecret(ctx context.Context, secretPath string) (*ports.Secret, error) {
	filePath := filepath.Join(m.basePath, filepath.Clean("/"+secretPath))

	m.logger.Debug("Reading secret from filesystem",
		zap.String("path", secretPath),
	)

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("secret not found: %s", secretPath)
		}
		return nil, fmt.Errorf("failed to read secret: %w", err)
	}

	var secretData struct {
		Value     string            `json:"value"`
		Tags      map[string]string `json:"tags"`
		CreatedAt string            `json:"created_at"`
	}
	if err := json.Unmarshal(data, &secretData); err == nil && secretData.Value != "" {
		return &ports.Secret{
			Value:     secretData.Value,
			Version:   "v1",
			Metadata:  secretData.Tags,
			CreatedAt: secretData.CreatedAt,
		}, nil
	}

	// Plain text; editors usually leave a trailing newline
	return &ports.Secret{
		Value:   strings.TrimRight(string(data), "\r\n"),
		Version: "v1",
	}, nil
}

// GetSecretVersion retrieves a specific version of a secret
// For local filesystem, we only support "latest" version
func (m *localSecretManager) GetSecretVersion(ctx context.Context, path string, version string) (*ports.Secret, error) {
	return m.GetSecret(ctx, path)
}
