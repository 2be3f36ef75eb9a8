package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":5001", cfg.Server.HTTPAddr)
	assert.Equal(t, "local", cfg.Broker.Kind)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 10*time.Second, cfg.Client.Timeout)
}

func TestLoadFileWithEnvExpansion(t *testing.T) {
	t.Setenv("TEST_CHAT_SECRET", "0123456789abcdef0123456789abcdef")
	path := writeConfig(t, `
server:
  http_addr: "127.0.0.1:9000"
auth:
  jwt_secret: "${TEST_CHAT_SECRET}"
  token_ttl: "2h"
broker:
  kind: redis
  redis_addr: "localhost:6379"
client:
  timeout: "3s"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.HTTPAddr)
	assert.Equal(t, "0123456789abcdef0123456789abcdef", cfg.Auth.JWTSecret)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 3*time.Second, cfg.Client.Timeout)
	assert.Equal(t, "redis", cfg.Broker.Kind)
	require.NoError(t, cfg.ValidateServer())
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  http_addr: \":7000\"\n")
	t.Setenv("PORT", "8083")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8083", cfg.Server.HTTPAddr)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadRejectsUnknownBroker(t *testing.T) {
	path := writeConfig(t, "broker:\n  kind: kafka\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown broker kind")
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, "auth:\n  token_ttl: \"soon\"\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token_ttl")
}

func TestValidateServerRequiresSecret(t *testing.T) {
	cfg := Default()
	cfg.Auth.JWTSecret = "short"

	assert.Error(t, cfg.ValidateServer())
}
