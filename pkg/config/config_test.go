package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 5, cfg.Sync.BatchSize)
	assert.Equal(t, 3, cfg.Sync.LoginMaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.Sync.LoginBackoff)
	assert.Equal(t, "02-01", cfg.Sync.SemesterSplit)
	assert.Equal(t, "Europe/Zurich", cfg.Matcher.Timezone)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
}

func TestLoadSplitsCORSOrigins(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://ops.example.ch, ,https://admin.example.ch ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://ops.example.ch", "https://admin.example.ch"}, cfg.CORS.AllowedOrigins)
}

func TestLoadEnvOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("SYNC_BATCH_SIZE", "12")
	t.Setenv("SYNC_LOGIN_BACKOFF", "250ms")
	t.Setenv("CACHE_ENABLED", "true")
	t.Setenv("CACHE_TTL", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Sync.BatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Sync.LoginBackoff)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 15*time.Minute, cfg.Cache.TTL)
}

func TestLoadRejectsNonPositiveBatchSize(t *testing.T) {
	chdirTemp(t)
	t.Setenv("SYNC_BATCH_SIZE", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Sync.BatchSize)
}

func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
