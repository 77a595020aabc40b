package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rain-protocol/rain/core/pkg/config"
)

// TestLoad_Defaults verifies that Load() returns sensible defaults
// when no environment variables are set.
// Invariant: System must boot with safe defaults in dev mode.
func TestLoad_Defaults(t *testing.T) {
	// Ensure clean env
	t.Setenv("RAIN_LOG_LEVEL", "")
	t.Setenv("RAIN_DATABASE_DRIVER", "")
	t.Setenv("RAIN_DATABASE_DSN", "")
	t.Setenv("RAIN_REDIS_ADDR", "")
	t.Setenv("RAIN_UPDATER_KEY", "")
	t.Setenv("RAIN_PROFILE", "")

	cfg := config.Load()

	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Contains(t, cfg.DatabaseDSN, "file:") // Default is a local file
	assert.Empty(t, cfg.RedisAddr)
	assert.NotEmpty(t, cfg.UpdaterKey)
}

// TestLoad_Overrides verifies that environment variables correctly
// override default values.
// Invariant: Ops can control config via standard 12-factor env vars.
func TestLoad_Overrides(t *testing.T) {
	t.Setenv("RAIN_LOG_LEVEL", "DEBUG")
	t.Setenv("RAIN_DATABASE_DRIVER", "postgres")
	t.Setenv("RAIN_DATABASE_DSN", "postgres://production:5432/rain")
	t.Setenv("RAIN_REDIS_ADDR", "redis:6379")
	t.Setenv("RAIN_UPDATER_KEY", "production-key")

	cfg := config.Load()

	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, "postgres://production:5432/rain", cfg.DatabaseDSN)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, "production-key", cfg.UpdaterKey)
}

func writeProfile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadEconomicProfile(t *testing.T) {
	path := writeProfile(t, "profile_mainnet.yaml", `
engine_compat: ">= 1.0.0, < 2.0.0"
fee_asset: USDC
treasury: rain-treasury
base_fee: 25
reward_per_fulfillment: 8
penalty_per_default: 40
envelope_ttl_ms: 120000
batches_per_sec: 5
`)

	p, err := config.LoadEconomicProfile(path)
	require.NoError(t, err)

	// Name falls back to the filename.
	assert.Equal(t, "mainnet", p.Name)
	assert.Equal(t, int64(25), p.BaseFee)
	assert.Equal(t, "rain-treasury", p.Treasury)
	assert.Equal(t, 2*time.Minute, p.EnvelopeTTL())
}

func TestLoadEconomicProfileRejectsIncompatibleEngine(t *testing.T) {
	path := writeProfile(t, "profile_future.yaml", `
engine_compat: ">= 9.0.0"
fee_asset: USDC
treasury: treasury
base_fee: 10
reward_per_fulfillment: 5
penalty_per_default: 20
batches_per_sec: 1
`)

	_, err := config.LoadEconomicProfile(path)
	assert.True(t, errors.Is(err, config.ErrIncompatibleProfile))
}

func TestLoadEconomicProfileRejectsBadEconomics(t *testing.T) {
	path := writeProfile(t, "profile_bad.yaml", `
engine_compat: ">= 1.0.0"
fee_asset: USDC
treasury: treasury
base_fee: 0
reward_per_fulfillment: 5
penalty_per_default: 20
batches_per_sec: 1
`)

	_, err := config.LoadEconomicProfile(path)
	assert.Error(t, err)
}

func TestDefaultProfileValidates(t *testing.T) {
	require.NoError(t, config.DefaultProfile().Validate())
}
