package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 5*time.Second, cfg.Streaming.MinUpdateInterval)
	assert.Equal(t, 30*time.Second, cfg.Streaming.DefaultUpdateInterval)
	assert.Equal(t, 50.0, cfg.Aggregation.GridSizeMeters)
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  address: ":9090"
streaming:
  default_update_interval: 45s
aggregation:
  grid_size_meters: 100
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, 45*time.Second, cfg.Streaming.DefaultUpdateInterval)
	assert.Equal(t, 100.0, cfg.Aggregation.GridSizeMeters)

	// Untouched sections keep their defaults.
	assert.Equal(t, 64, cfg.Realtime.SendBufferSize)
}

func TestLoad_RejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
streaming:
  min_update_interval: 1m
  default_update_interval: 10s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CAMPUSPULSE_SERVER_ADDRESS", ":7070")
	t.Setenv("CAMPUSPULSE_JWT_SECRET", "env-secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Address)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
}

func TestValidate_Failures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty address", func(c *Config) { c.Server.Address = "" }},
		{"zero read timeout", func(c *Config) { c.Server.ReadTimeout = 0 }},
		{"zero ping interval", func(c *Config) { c.Realtime.PingInterval = 0 }},
		{"zero send buffer", func(c *Config) { c.Realtime.SendBufferSize = 0 }},
		{"default below min interval", func(c *Config) { c.Streaming.DefaultUpdateInterval = time.Second }},
		{"zero heartbeat", func(c *Config) { c.Streaming.HeartbeatInterval = 0 }},
		{"zero grid size", func(c *Config) { c.Aggregation.GridSizeMeters = 0 }},
		{"negative decay", func(c *Config) { c.Aggregation.TimeDecayFactor = -1 }},
		{"risk enabled without url", func(c *Config) { c.Risk.Enabled = true; c.Risk.BaseURL = "" }},
		{"redis enabled without address", func(c *Config) { c.Redis.Enabled = true; c.Redis.Address = "" }},
		{"empty jwt secret", func(c *Config) { c.Auth.JWTSecret = "" }},
		{"rate limit without rps", func(c *Config) { c.RateLimiting.Enabled = true; c.RateLimiting.RequestsPerSecond = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
