// Package config loads configuration from environment variables, validates
// required fields, and provides sensible defaults. Validation problems are
// aggregated so a misconfigured deployment reports everything at once.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
)

const defaultRegion = "auto"

var hexKeyPattern = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

// Config holds all application configuration.
type Config struct {
	// Database
	DatabasePath string // Path to the SQLite database file
	MasterKey    string // Optional SQLCipher key, 64 hex characters (32 bytes)

	// Identity tokens
	AuthTokenSecret string        // HMAC secret for caller tokens
	AuthTokenTTL    time.Duration // How long issued tokens remain valid

	// S3-compatible image storage (optional; image uploads are rejected
	// without it, image path references still work)
	AWSEndpointS3      string // AWS_ENDPOINT_URL_S3
	AWSRegion          string // AWS_REGION
	AWSAccessKeyID     string // AWS_ACCESS_KEY_ID
	AWSSecretAccessKey string // AWS_SECRET_ACCESS_KEY
	AWSBucketName      string // BUCKET_NAME
	AWSPublicURL       string // S3_PUBLIC_URL
}

// ValidationError represents a configuration validation error with multiple
// issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.DatabasePath = getEnvOrDefault("DATABASE_PATH", "./data/devnotes.db")
	cfg.MasterKey = strings.TrimSpace(os.Getenv("MASTER_KEY"))

	cfg.AuthTokenSecret = strings.TrimSpace(os.Getenv("AUTH_TOKEN_SECRET"))
	cfg.AuthTokenTTL = parseDurationOrDefault("AUTH_TOKEN_TTL", 24*time.Hour)

	cfg.AWSEndpointS3 = strings.TrimSpace(os.Getenv("AWS_ENDPOINT_URL_S3"))
	cfg.AWSRegion = getEnvOrDefault("AWS_REGION", defaultRegion)
	cfg.AWSAccessKeyID = strings.TrimSpace(os.Getenv("AWS_ACCESS_KEY_ID"))
	cfg.AWSSecretAccessKey = strings.TrimSpace(os.Getenv("AWS_SECRET_ACCESS_KEY"))
	cfg.AWSBucketName = strings.TrimSpace(os.Getenv("BUCKET_NAME"))
	cfg.AWSPublicURL = strings.TrimSpace(os.Getenv("S3_PUBLIC_URL"))
	if cfg.AWSPublicURL == "" && cfg.AWSEndpointS3 != "" && cfg.AWSBucketName != "" {
		cfg.AWSPublicURL = strings.TrimRight(cfg.AWSEndpointS3, "/") + "/" + cfg.AWSBucketName
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that all required configuration is present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.DatabasePath == "" {
		errs = append(errs, "DATABASE_PATH is required")
	}
	if c.MasterKey != "" && !hexKeyPattern.MatchString(c.MasterKey) {
		errs = append(errs, "MASTER_KEY must be 64 hex characters (generate with: openssl rand -hex 32)")
	}

	if c.AuthTokenSecret == "" {
		errs = append(errs, "AUTH_TOKEN_SECRET is required (generate with: openssl rand -hex 32)")
	} else if len(c.AuthTokenSecret) < 32 {
		errs = append(errs, "AUTH_TOKEN_SECRET must be at least 32 characters")
	}
	if c.AuthTokenTTL <= 0 {
		errs = append(errs, "AUTH_TOKEN_TTL must be positive")
	}

	// Image storage is optional but all-or-nothing.
	if c.ImagesConfigured() {
		if c.AWSBucketName == "" {
			errs = append(errs, "BUCKET_NAME is required when S3 storage is configured")
		}
		if c.AWSAccessKeyID == "" {
			errs = append(errs, "AWS_ACCESS_KEY_ID is required when S3 storage is configured")
		}
		if c.AWSSecretAccessKey == "" {
			errs = append(errs, "AWS_SECRET_ACCESS_KEY is required when S3 storage is configured")
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// ImagesConfigured reports whether any S3 storage setting is present.
func (c *Config) ImagesConfigured() bool {
	return c.AWSEndpointS3 != "" || c.AWSBucketName != "" ||
		c.AWSAccessKeyID != "" || c.AWSSecretAccessKey != ""
}

// Encrypted reports whether the database is opened with a SQLCipher key.
func (c *Config) Encrypted() bool {
	return c.MasterKey != ""
}

func getEnvOrDefault(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseDurationOrDefault(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
