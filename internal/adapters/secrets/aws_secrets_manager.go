package secrets

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"go.uber.org/zap"

	"github.com/kevin07696/swish-payment-service/internal/adapters/ports"
)

// AWSSecretsManagerConfig contains configuration for AWS Secrets Manager adapter
type AWSSecretsManagerConfig struct {
	// AWS Region (e.g., "eu-north-1")
	Region string

	// Optional: AWS profile name (for local development)
	Profile string

	// Optional: Custom endpoint (for LocalStack testing)
	Endpoint string

	// Cache TTL for secrets, zero disables caching (default: 5 minutes)
	CacheTTL time.Duration
}

// DefaultAWSSecretsManagerConfig returns default configuration
func DefaultAWSSecretsManagerConfig(region string) *AWSSecretsManagerConfig {
	return &AWSSecretsManagerConfig{
		Region:   region,
		CacheTTL: 5 * time.Minute,
	}
}

// secretValueGetter is the part of the Secrets Manager client the adapter uses
type secretValueGetter interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// awsSecretsManagerAdapter implements the SecretManagerAdapter port for AWS Secrets Manager
type awsSecretsManagerAdapter struct {
	client secretValueGetter
	logger *zap.Logger
	cache  *secretCache
}

// NewAWSSecretsManagerAdapter creates a new AWS Secrets Manager adapter
func NewAWSSecretsManagerAdapter(ctx context.Context, cfg *AWSSecretsManagerConfig, logger *zap.Logger) (ports.SecretManagerAdapter, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.Profile != "" {
		// Use specific profile (local development)
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}

	// Default credentials chain (IAM role in production)
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	clientOptions := []func(*secretsmanager.Options){}
	if cfg.Endpoint != "" {
		clientOptions = append(clientOptions, func(o *secretsmanager.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	logger.Info("AWS Secrets Manager adapter initialized",
		zap.String("region", cfg.Region),
		zap.Duration("cache_ttl", cfg.CacheTTL),
	)

	return newAWSSecretsManagerAdapter(secretsmanager.NewFromConfig(awsConfig, clientOptions...), cfg.CacheTTL, logger), nil
}

func newAWSSecretsManagerAdapter(client secretValueGetter, cacheTTL time.Duration, logger *zap.Logger) *awsSecretsManagerAdapter {
	return &awsSecretsManagerAdapter{
		client: client,
		logger: logger,
		cache:  newSecretCache(cacheTTL),
	}
}

// GetSecret retrieves a secret by its name or full ARN
func (a *awsSecretsManagerAdapter) GetSecret(ctx context.Context, path string) (*ports.Secret, error) {
	if cached := a.cache.get(path); cached != nil {
		a.logger.Debug("Secret retrieved from cache", zap.String("path", path))
		return cached, nil
	}

	secret, err := a.fetch(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(path),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get secret %s: %w", path, err)
	}

	a.cache.set(path, secret)
	return secret, nil
}

// GetSecretVersion retrieves a specific version of a secret
func (a *awsSecretsManagerAdapter) GetSecretVersion(ctx context.Context, path string, version string) (*ports.Secret, error) {
	secret, err := a.fetch(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:  aws.String(path),
		VersionId: aws.String(version),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get secret %s version %s: %w", path, version, err)
	}
	return secret, nil
}

func (a *awsSecretsManagerAdapter) fetch(ctx context.Context, input *secretsmanager.GetSecretValueInput) (*ports.Secret, error) {
	path := aws.ToString(input.SecretId)
	a.logger.Info("Retrieving secret from AWS Secrets Manager", zap.String("path", path))

	startTime := time.Now()
	result, err := a.client.GetSecretValue(ctx, input)
	if err != nil {
		a.logger.Error("Failed to retrieve secret",
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}

	a.logger.Info("Secret retrieved successfully",
		zap.String("path", path),
		zap.Duration("elapsed", time.Since(startTime)),
	)

	secret := &ports.Secret{
		Value:    aws.ToString(result.SecretString),
		Version:  aws.ToString(result.VersionId),
		Metadata: make(map[string]string),
	}
	if result.CreatedDate != nil {
		secret.CreatedAt = result.CreatedDate.Format(time.RFC3339)
	}
	if result.ARN != nil {
		secret.Metadata["arn"] = *result.ARN
	}
	if result.Name != nil {
		secret.Metadata["name"] = *result.Name
	}

	return secret, nil
}
