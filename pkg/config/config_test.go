package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, 10*time.Second, cfg.Live.FetchTimeout)
	assert.Equal(t, 30, cfg.Query.DefaultRangeDays)
	assert.Equal(t, 30*time.Minute, cfg.Query.SessionIdleTTL)
	assert.Equal(t, 1024, cfg.Query.MaxSessions)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFileThenEnv(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  port: "9090"
storage:
  backend: "redis"
  redis_addr: "cache:6379"
  key_prefix: "hub:"
live:
  provider_api_url: "https://ads.example.test"
  fetch_timeout: 3s
  rate_limit_per_second: 5
insights:
  model: "gemini-test"
logging:
  level: "debug"
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	t.Setenv("CONFIG_FILE", configPath)
	t.Setenv("PORT", "7070")
	t.Setenv("REDIS_DB", "2")

	cfg, err := Load()
	require.NoError(t, err)

	// env wins over the file
	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, 2, cfg.Storage.RedisDB)

	assert.Equal(t, BackendRedis, cfg.Storage.Backend)
	assert.Equal(t, "cache:6379", cfg.Storage.RedisAddr)
	assert.Equal(t, "hub:", cfg.Storage.KeyPrefix)
	assert.Equal(t, "https://ads.example.test", cfg.Live.ProviderAPIURL)
	assert.Equal(t, 3*time.Second, cfg.Live.FetchTimeout)
	assert.Equal(t, 5, cfg.Live.RateLimitPerSecond)
	assert.Equal(t, "gemini-test", cfg.Insights.Model)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// untouched defaults survive
	assert.Equal(t, 30, cfg.Query.DefaultRangeDays)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("STORAGE_BACKEND", "sqlite")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestInvalidEnvValuesFallBack(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("FETCH_TIMEOUT", "soon")
	t.Setenv("RATE_LIMIT_PER_SECOND", "many")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.Live.FetchTimeout)
	assert.Equal(t, 10, cfg.Live.RateLimitPerSecond)
}

func TestLoadRejectsZeroSessions(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("MAX_SESSIONS", "0")

	_, err := Load()
	assert.Error(t, err)
}
