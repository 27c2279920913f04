package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const validSecret = "0123456789abcdef0123456789abcdef"

func setBaseline(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_PATH", "")
	t.Setenv("MASTER_KEY", "")
	t.Setenv("AUTH_TOKEN_SECRET", validSecret)
	t.Setenv("AUTH_TOKEN_TTL", "")
	t.Setenv("AWS_ENDPOINT_URL_S3", "")
	t.Setenv("AWS_REGION", "")
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")
	t.Setenv("BUCKET_NAME", "")
	t.Setenv("S3_PUBLIC_URL", "")
}

func TestLoad_Defaults(t *testing.T) {
	setBaseline(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "./data/devnotes.db", cfg.DatabasePath)
	require.Equal(t, 24*time.Hour, cfg.AuthTokenTTL)
	require.Equal(t, defaultRegion, cfg.AWSRegion)
	require.False(t, cfg.Encrypted())
	require.False(t, cfg.ImagesConfigured())
}

func TestLoad_MissingSecretAggregatesErrors(t *testing.T) {
	setBaseline(t)
	t.Setenv("AUTH_TOKEN_SECRET", "")
	t.Setenv("MASTER_KEY", "not-hex")

	_, err := Load()
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Errors, 2)
	require.Contains(t, err.Error(), "AUTH_TOKEN_SECRET")
	require.Contains(t, err.Error(), "MASTER_KEY")
}

func TestLoad_ShortSecretRejected(t *testing.T) {
	setBaseline(t)
	t.Setenv("AUTH_TOKEN_SECRET", "too-short")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "at least 32 characters")
}

func TestLoad_MasterKey(t *testing.T) {
	setBaseline(t)
	t.Setenv("MASTER_KEY", strings.Repeat("ab", 32))

	cfg, err := Load()
	require.NoError(t, err)
	require.True(t, cfg.Encrypted())
}

func TestLoad_TokenTTL(t *testing.T) {
	setBaseline(t)
	t.Setenv("AUTH_TOKEN_TTL", "45m")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 45*time.Minute, cfg.AuthTokenTTL)

	// An unparseable duration falls back to the default.
	t.Setenv("AUTH_TOKEN_TTL", "tomorrow")
	cfg, err = Load()
	require.NoError(t, err)
	require.Equal(t, 24*time.Hour, cfg.AuthTokenTTL)
}

func TestLoad_S3AllOrNothing(t *testing.T) {
	setBaseline(t)
	t.Setenv("AWS_ENDPOINT_URL_S3", "https://s3.example.com")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "BUCKET_NAME")
	require.Contains(t, err.Error(), "AWS_ACCESS_KEY_ID")
	require.Contains(t, err.Error(), "AWS_SECRET_ACCESS_KEY")
}

func TestLoad_S3Complete(t *testing.T) {
	setBaseline(t)
	t.Setenv("AWS_ENDPOINT_URL_S3", "https://s3.example.com/")
	t.Setenv("AWS_ACCESS_KEY_ID", "key")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
	t.Setenv("BUCKET_NAME", "notes-images")

	cfg, err := Load()
	require.NoError(t, err)
	require.True(t, cfg.ImagesConfigured())
	require.Equal(t, "https://s3.example.com/notes-images", cfg.AWSPublicURL,
		"public URL is derived from endpoint and bucket when unset")

	t.Setenv("S3_PUBLIC_URL", "https://cdn.example.com")
	cfg, err = Load()
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com", cfg.AWSPublicURL)
}
