package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	path := writeConfig(t, "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.RCON.Host)
	assert.Equal(t, 27015, cfg.RCON.Port)
	assert.Equal(t, "gpt-4o", cfg.OpenAI.Model)
	assert.Equal(t, 100, cfg.Agent.MaxSteps)
	assert.Equal(t, "tool_metadata.json", cfg.Tools.MetadataPath)
	assert.Equal(t, "Factorio/Commands", cfg.MQTT.CommandTopic)
	assert.Equal(t, "Factorio/Responses", cfg.MQTT.ResponseTopic)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[rcon]
host = "factorio.internal"
port = 34197
password = "secret"

[openai]
api_key = "sk-test"
model = "gpt-4o-mini"

[agent]
max_steps = 10

[debug]
enabled = true
log_path = "agent.log"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "factorio.internal", cfg.RCON.Host)
	assert.Equal(t, 34197, cfg.RCON.Port)
	assert.Equal(t, "secret", cfg.RCON.Password)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
	assert.Equal(t, 10, cfg.Agent.MaxSteps)
	assert.True(t, cfg.Debug.Enabled)
	assert.Equal(t, "agent.log", cfg.Debug.LogPath)

	// Sections absent from the file keep their defaults.
	assert.Equal(t, 120, cfg.Agent.StepTimeout)
	assert.Equal(t, "audit.db", cfg.Tools.AuditDBPath)
}

func TestLoadAPIKeyFromEnvironment(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	path := writeConfig(t, "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", cfg.OpenAI.APIKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestLoadMalformedFile(t *testing.T) {
	path := writeConfig(t, "[rcon\nhost=")
	_, err := Load(path)
	assert.Error(t, err)
}
