package ports

import (
	"context"
)

// Secret represents a retrieved secret with metadata
type Secret struct {
	Value     string            // The secret value (e.g., certificate passphrase)
	Version   string            // Secret version identifier
	Metadata  map[string]string // Additional secret metadata
	CreatedAt string            // When this version was created
}

// SecretManagerAdapter defines the port for reading secrets from a secret management service
// Supports multiple backends: local filesystem, AWS Secrets Manager, GCP Secret Manager, HashiCorp Vault
// Implementations cache secrets in memory with a TTL
type SecretManagerAdapter interface {
	// GetSecret retrieves the current version of a secret by its path/name
	// Path format depends on implementation:
	//   - Local: file path relative to the configured base directory
	//   - AWS: "swish/merchant/cert-passphrase" or full ARN
	//   - GCP: secret name, resolved to "projects/{project}/secrets/{name}/versions/latest"
	//   - Vault: "swish/merchant" under the configured KV mount
	GetSecret(ctx context.Context, path string) (*Secret, error)

	// GetSecretVersion retrieves a specific version of a secret
	// Useful while a rotated passphrase has not yet been rolled out with its bundle
	GetSecretVersion(ctx context.Context, path string, version string) (*Secret, error)
}
