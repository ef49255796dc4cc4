package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Swish         SwishConfig
	Poll          PollConfig
	SecretManager SecretManagerConfig
	RateLimit     RateLimitConfig
	Logger        LoggerConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port        int
	MetricsPort int
}

// SwishConfig holds the merchant's provider settings and credential locations
type SwishConfig struct {
	BaseURL          string // API root, e.g. https://mss.cpc.getswish.net/swish-cpcapi/api/v1
	CallbackURL      string // Default callbackUrl for requests that carry none
	PayeeAlias       string // Merchant Swish number
	Currency         string
	CertPath         string // PKCS#12 bundle with the merchant certificate and key
	CertPassphrase   string // Passphrase given directly
	PassphraseSecret string // Secret path resolved through the secret manager instead
	RootCAPath       string // PEM with the provider's root CA
	Timeout          int    // Single request timeout in seconds (default: 30)
}

// PollConfig bounds the wait for a created payment
type PollConfig struct {
	Interval    time.Duration
	MaxAttempts int
	Timeout     time.Duration // 0 leaves only MaxAttempts as the bound
}

// SecretManagerConfig selects and configures the secret backend
type SecretManagerConfig struct {
	Backend   string // local, aws, vault, gcp
	LocalPath string
	CacheTTL  time.Duration

	AWSRegion   string
	AWSEndpoint string

	VaultAddress   string
	VaultToken     string
	VaultMountPath string

	GCPProjectID string
}

// RateLimitConfig holds per-client rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level       string // debug, info, warn, error
	Environment string // development or production
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnvAsInt("HTTP_PORT", 8080),
			MetricsPort: getEnvAsInt("METRICS_PORT", 9090),
		},
		Swish: SwishConfig{
			BaseURL:          getEnv("SWISH_BASE_URL", "https://mss.cpc.getswish.net/swish-cpcapi/api/v1"),
			CallbackURL:      getEnv("SWISH_CALLBACK_URL", ""),
			PayeeAlias:       getEnv("SWISH_PAYEE_ALIAS", ""),
			Currency:         getEnv("SWISH_CURRENCY", "SEK"),
			CertPath:         getEnv("SWISH_CERT_PATH", ""),
			CertPassphrase:   getEnv("SWISH_CERT_PASSPHRASE", ""),
			PassphraseSecret: getEnv("SWISH_CERT_PASSPHRASE_SECRET", ""),
			RootCAPath:       getEnv("SWISH_ROOT_CA_PATH", ""),
			Timeout:          getEnvAsInt("SWISH_TIMEOUT_SECONDS", 30),
		},
		Poll: PollConfig{
			Interval:    getEnvAsDuration("SWISH_POLL_INTERVAL", 4*time.Second),
			MaxAttempts: getEnvAsInt("SWISH_POLL_MAX_ATTEMPTS", 45),
			Timeout:     getEnvAsDuration("SWISH_POLL_TIMEOUT", 3*time.Minute),
		},
		SecretManager: SecretManagerConfig{
			Backend:        strings.ToLower(getEnv("SECRET_MANAGER", "local")),
			LocalPath:      getEnv("SECRET_MANAGER_LOCAL_PATH", "./secrets"),
			CacheTTL:       getEnvAsDuration("SECRET_CACHE_TTL", 5*time.Minute),
			AWSRegion:      getEnv("AWS_REGION", "eu-north-1"),
			AWSEndpoint:    getEnv("AWS_SECRETS_ENDPOINT", ""),
			VaultAddress:   getEnv("VAULT_ADDR", "http://localhost:8200"),
			VaultToken:     getEnv("VAULT_TOKEN", ""),
			VaultMountPath: getEnv("VAULT_MOUNT_PATH", "secret"),
			GCPProjectID:   getEnv("GCP_PROJECT_ID", ""),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 10),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 20),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields and value ranges
func (c *Config) Validate() error {
	required := map[string]string{
		"SWISH_CALLBACK_URL": c.Swish.CallbackURL,
		"SWISH_PAYEE_ALIAS":  c.Swish.PayeeAlias,
		"SWISH_CERT_PATH":    c.Swish.CertPath,
		"SWISH_ROOT_CA_PATH": c.Swish.RootCAPath,
	}
	for _, key := range []string{"SWISH_CALLBACK_URL", "SWISH_PAYEE_ALIAS", "SWISH_CERT_PATH", "SWISH_ROOT_CA_PATH"} {
		if required[key] == "" {
			return fmt.Errorf("%s is required", key)
		}
	}

	if c.Poll.Interval <= 0 {
		return fmt.Errorf("SWISH_POLL_INTERVAL must be positive")
	}
	if c.Poll.Timeout < 0 {
		return fmt.Errorf("SWISH_POLL_TIMEOUT must not be negative (0 disables it)")
	}
	if c.Poll.MaxAttempts <= 0 {
		return fmt.Errorf("SWISH_POLL_MAX_ATTEMPTS must be positive")
	}
	if c.Swish.Timeout <= 0 {
		return fmt.Errorf("SWISH_TIMEOUT_SECONDS must be positive")
	}

	switch c.SecretManager.Backend {
	case "local", "aws", "vault":
	case "gcp":
		if c.SecretManager.GCPProjectID == "" {
			return fmt.Errorf("GCP_PROJECT_ID is required when SECRET_MANAGER=gcp")
		}
	default:
		return fmt.Errorf("unknown SECRET_MANAGER %q", c.SecretManager.Backend)
	}

	return nil
}

// RequestTimeout returns the single request timeout as a duration
func (c *SwishConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// IsProduction reports whether production logging should be used
func (c *LoggerConfig) IsProduction() bool {
	return c.Environment == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
