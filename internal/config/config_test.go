package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	cfg := Load()

	assert.NotNil(t, cfg)
	assert.NotEmpty(t, cfg.ListenAddr)
	assert.NotEmpty(t, cfg.DBPath)
	assert.Equal(t, "https://api-data.line.me", cfg.LineDataEndpoint)
	assert.Equal(t, 1000, cfg.VisionMaxTokens)
	assert.InDelta(t, 0.2, cfg.VisionTemperature, 0.0001)
}

func TestLoadCustomValues(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("LISTEN_ADDR", ":9000")
	t.Setenv("DB_PATH", "/custom/db.sqlite")
	t.Setenv("VISION_BACKEND", "claude")
	t.Setenv("CLAUDE_API_KEY", "sk-test123")
	t.Setenv("VISION_MAX_TOKENS", "512")
	t.Setenv("HTTP_TIMEOUT", "5s")

	cfg := Load()

	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, "/custom/db.sqlite", cfg.DBPath)
	assert.Equal(t, "claude", cfg.VisionBackend)
	assert.Equal(t, "sk-test123", cfg.ClaudeAPIKey)
	assert.Equal(t, 512, cfg.VisionMaxTokens)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
}

func TestLoadInvalidNumbersFallBack(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("VISION_MAX_TOKENS", "lots")
	t.Setenv("AUDIT_TIMEOUT", "soon")

	cfg := Load()

	assert.Equal(t, 1000, cfg.VisionMaxTokens)
	assert.Equal(t, 30*time.Second, cfg.AuditTimeout)
}

func TestLoadEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("FOODBOT_TEST_ONLY_MODEL=from-file\n"), 0600))
	t.Setenv("ENV_FILE", envFile)
	t.Cleanup(func() { _ = os.Unsetenv("FOODBOT_TEST_ONLY_MODEL") })

	Load()

	assert.Equal(t, "from-file", os.Getenv("FOODBOT_TEST_ONLY_MODEL"))
}

func TestLoadEnvFileDoesNotOverride(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("OPENAI_MODEL=from-file\n"), 0600))
	t.Setenv("ENV_FILE", envFile)
	t.Setenv("OPENAI_MODEL", "from-env")

	cfg := Load()

	assert.Equal(t, "from-env", cfg.OpenAIModel)
}
