package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		original, wasSet := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if wasSet {
				os.Setenv(k, original)
			} else {
				os.Unsetenv(k)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t, "DATA_DIR", "GO_PORT", "DEV_MODE", "RATE_LIMIT_PER_HOUR", "RATE_LIMIT_PER_DAY")

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, 8080, cfg.Port)
	assert.False(t, cfg.DevMode)
	assert.Equal(t, 10, cfg.RateLimitPerHour)
	assert.Equal(t, 50, cfg.RateLimitPerDay)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t, "DATA_DIR", "GO_PORT", "MAX_CONCURRENT_AI_REQUESTS")
	os.Setenv("DATA_DIR", "/tmp/arb-data")
	os.Setenv("GO_PORT", "9090")
	os.Setenv("MAX_CONCURRENT_AI_REQUESTS", "20")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/arb-data", cfg.DataDir)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 20, cfg.MaxConcurrentAI)
}

func TestValidate_RejectsInvertedRateLimits(t *testing.T) {
	cfg := &Config{
		DataDir:           "./data",
		MaxConcurrentAI:   1,
		MaxConcurrentTxn:  1,
		DistributionBatch: 1,
		RateLimitPerHour:  100,
		RateLimitPerDay:   10,
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RATE_LIMIT_PER_HOUR")
}

func TestValidate_RejectsZeroCaps(t *testing.T) {
	cfg := &Config{DataDir: "./data"}
	err := cfg.Validate()
	require.Error(t, err)
}
