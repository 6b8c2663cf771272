package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "TOKEN_API", "TOKEN_API_HASH", "PORT", "GIN_MODE", "LOG_LEVEL", "LOG_JSON",
		"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE",
		"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "CACHE_TTL_MINUTES", "WEBHOOK_TIMEOUT_SECONDS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadRequiresToken(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	assert.Nil(t, cfg)
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("TOKEN_API", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "debug", cfg.GinMode)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "minute_allocation", cfg.Database.Name)
	assert.Equal(t, 10.0, cfg.RateLimitRPS)
	assert.Equal(t, 20, cfg.RateLimitBurst)
}

func TestLoadFileThenEnvOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	path := filepath.Join(dir, "allocator.yaml")
	content := `
server:
  port: "9090"
  logLevel: debug
  logJSON: true
database:
  host: db.internal
  name: allocations
rateLimit:
  rps: 2.5
  burst: 4
cache:
  ttlMinutes: 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("TOKEN_API_HASH", "$2a$10$hash")
	t.Setenv("DB_HOST", "db.override")
	t.Setenv("RATE_LIMIT_BURST", "8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.LogJSON)
	assert.Equal(t, "db.override", cfg.Database.Host)
	assert.Equal(t, "allocations", cfg.Database.Name)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
	assert.Equal(t, 8, cfg.RateLimitBurst)
	assert.Equal(t, 3, cfg.CacheTTLMinutes)
	assert.Equal(t, 30, cfg.WebhookTimeoutSeconds)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("TOKEN_API", "secret")
	t.Setenv("CONFIG_FILE", "does-not-exist.yaml")

	_, err := Load()
	assert.Error(t, err)
}
