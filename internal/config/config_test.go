package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Jazys/instagen-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigYAML = `
server:
  port: "${TEST_PORT:-9090}"
  environment: "${TEST_ENV:-development}"
  log_level: "debug"

database:
  type: "sqlite"
  file_path: "test.db"

auth:
  provider: "jwt"
  jwt:
    secret: "${TEST_JWT_SECRET}"

credits:
  baseline: 250
  sweep_enabled: true
  sweep_interval_minutes: 15
`

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromFileSubstitutesEnvVars(t *testing.T) {
	t.Setenv("TEST_PORT", "7070")
	t.Setenv("TEST_JWT_SECRET", "super-secret")

	cfg, err := LoadFromFile(writeTestConfig(t, testConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Environment)
	assert.Equal(t, models.SQLite, cfg.Database.Type)
	assert.Equal(t, "jwt", cfg.Auth.Provider)
	require.NotNil(t, cfg.Auth.JWTConfig)
	assert.Equal(t, "super-secret", cfg.Auth.JWTConfig.Secret)
	assert.Equal(t, int64(250), cfg.Credits.Baseline)
	assert.True(t, cfg.Credits.SweepEnabled)
}

func TestLoadFromFileAppliesDefaults(t *testing.T) {
	t.Setenv("TEST_PORT", "")
	t.Setenv("TEST_JWT_SECRET", "s")

	cfg, err := LoadFromFile(writeTestConfig(t, testConfigYAML))
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
}

func TestLoadFromFileRejectsBadPaths(t *testing.T) {
	_, err := LoadFromFile("../../etc/passwd.yaml")
	require.Error(t, err)

	_, err = LoadFromFile("config.json")
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Setenv("TEST_JWT_SECRET", "s")

	cfg, err := LoadFromFile(writeTestConfig(t, testConfigYAML))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	// Missing JWT secret fails closed.
	cfg.Auth.JWTConfig.Secret = ""
	require.Error(t, cfg.Validate())

	// Unknown database type.
	cfg, err = LoadFromFile(writeTestConfig(t, testConfigYAML))
	require.NoError(t, err)
	cfg.Database.Type = "oracle"
	require.Error(t, cfg.Validate())

	// Billing requires both secrets when configured.
	cfg, err = LoadFromFile(writeTestConfig(t, testConfigYAML))
	require.NoError(t, err)
	cfg.Billing = &models.StripeConfig{SecretKey: "sk_test"}
	require.Error(t, cfg.Validate())
	cfg.Billing.WebhookSecret = "whsec_test"
	require.NoError(t, cfg.Validate())
}

func TestIsProduction(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Environment = "production"
	assert.True(t, cfg.IsProduction())

	cfg.Server.Environment = "Production"
	assert.True(t, cfg.IsProduction())

	cfg.Server.Environment = "development"
	assert.False(t, cfg.IsProduction())
}
