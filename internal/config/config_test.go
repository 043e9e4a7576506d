package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), false)
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.Bot.Token)
	assert.Equal(t, "https://mobile-pre.at.dz/api/", cfg.Billing.BaseURL())
	assert.Equal(t, 3, cfg.Billing.Attempts)
	assert.Equal(t, time.Second, cfg.Billing.BaseDelay)
	assert.Equal(t, 30*time.Second, cfg.Billing.Timeout)
	assert.Equal(t, "Dart/2.18 (dart:io)", cfg.Billing.UserAgent)
	assert.Equal(t, "595.0", cfg.Billing.PSTNAmount)
	assert.Equal(t, "memory", cfg.Session.Backend)
	assert.Equal(t, 30*time.Minute, cfg.Session.IdleTimeout)
	assert.Equal(t, 3000, cfg.HTTP.Port)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfig_YAMLThenEnv(t *testing.T) {
	path := writeConfig(t, `
bot:
  token: from-yaml
  workers: 2
billing:
  host: billing.example
  base_delay: 250ms
session:
  idle_timeout: 5m
http:
  port: 8081
`)
	t.Setenv("PORT", "9090")
	t.Setenv("API_HOST", "override.example")

	cfg, err := LoadConfig(path, true)
	require.NoError(t, err)

	assert.Equal(t, "from-yaml", cfg.Bot.Token)
	assert.Equal(t, 2, cfg.Bot.Workers)
	assert.Equal(t, "override.example", cfg.Billing.Host)
	assert.Equal(t, 250*time.Millisecond, cfg.Billing.BaseDelay)
	assert.Equal(t, 5*time.Minute, cfg.Session.IdleTimeout)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.True(t, cfg.Runtime.Dev)
}

func TestLoadConfig_Validation(t *testing.T) {
	t.Run("missing token", func(t *testing.T) {
		t.Setenv("BOT_TOKEN", "")
		_, err := LoadConfig(writeConfig(t, "log:\n  level: debug\n"), false)
		assert.Error(t, err)
	})

	t.Run("redis backend without url", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "bot:\n  token: x\nsession:\n  backend: redis\n"), false)
		assert.ErrorContains(t, err, "redis.url")
	})

	t.Run("bad key length", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "bot:\n  token: x\nsecurity:\n  encryption_key: short\n"), false)
		assert.ErrorContains(t, err, "encryption_key")
	})
}
