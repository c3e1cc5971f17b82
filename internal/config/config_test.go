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

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 127.0.0.1
  port: 8080
  write_timeout: 60s
ai:
  api_key: sk-from-file
  text_model: gpt-4o
store:
  driver: redis
  redis:
    host: localhost
    port: 6379
logging:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 60*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, "sk-from-file", cfg.AI.APIKey)
	assert.Equal(t, "gpt-4o", cfg.AI.TextModel)
	assert.Equal(t, "redis", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Unset fields fall back to defaults.
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "dall-e-3", cfg.AI.ImageModel)
	assert.Equal(t, "classic-rides-memories", cfg.Store.Key)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a mapping")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 180*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, "gpt-4o-mini", cfg.AI.TextModel)
	assert.Equal(t, "file", cfg.Store.Driver)
	assert.Equal(t, "./data/classic-rides-memories.json", cfg.Store.File.Path)
	require.NoError(t, cfg.Validate())
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	t.Setenv("OPENAI_BASE_URL", "http://localhost:9999/v1")

	path := writeConfig(t, `
ai:
  api_key: sk-from-file
  base_url: https://api.openai.com/v1
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", cfg.AI.APIKey)
	assert.Equal(t, "http://localhost:9999/v1", cfg.AI.BaseURL)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0
	cfg.Store.Driver = "postgres"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be 1-65535")
	assert.Contains(t, err.Error(), "store.driver must be one of")
}

func TestValidate_DriverRequirements(t *testing.T) {
	cfg := Default()
	cfg.Store.Driver = "mysql"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.mysql.host is required")
	assert.Contains(t, err.Error(), "store.mysql.database is required")
}
