package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearKeyEnv(t *testing.T) {
	t.Helper()
	for _, p := range supportedProviders {
		t.Setenv(APIKeyEnv(p), "")
	}
}

func TestNewLoader(t *testing.T) {
	loader := NewLoader("/path/to/config.json")
	assert.NotNil(t, loader)
	assert.Equal(t, "/path/to/config.json", loader.GetConfigPath())
	assert.Equal(t, DefaultConfigFile, NewLoader("").GetConfigPath())
}

func TestLoaderLoad(t *testing.T) {
	t.Run("defaults when no file exists", func(t *testing.T) {
		clearKeyEnv(t)
		t.Chdir(t.TempDir())

		cfg, err := NewLoader("").Load()
		require.NoError(t, err)
		assert.Equal(t, "gemini", cfg.Provider)
		assert.Equal(t, 20, cfg.MaxSteps)
		assert.Equal(t, ".claii_memory.json", cfg.Memory.Path)
		assert.Empty(t, cfg.AI.Profiles)
	})

	t.Run("explicit path must exist", func(t *testing.T) {
		_, err := NewLoader(filepath.Join(t.TempDir(), "missing.json")).Load()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("file values override defaults", func(t *testing.T) {
		clearKeyEnv(t)
		configPath := filepath.Join(t.TempDir(), "claii.json")
		require.NoError(t, os.WriteFile(configPath, []byte(`{
			"provider": "anthropic",
			"model": "claude-sonnet-4-5",
			"memory": {"backend": "sqlite", "path": "history.db"},
			"ai": {"profiles": [
				{"id": "main", "provider": "anthropic", "api_key": "sk-ant-1", "priority": 1},
				{"id": "spare", "provider": "openai", "api_key": "sk-2", "priority": 2}
			]}
		}`), 0644))

		cfg, err := NewLoader(configPath).Load()
		require.NoError(t, err)

		assert.Equal(t, "anthropic", cfg.Provider)
		assert.Equal(t, "sqlite", cfg.Memory.Backend)
		assert.Equal(t, "history.db", cfg.Memory.Path)
		assert.True(t, cfg.Memory.Enabled, "unset keys keep their defaults")
		require.Len(t, cfg.AI.Profiles, 2)
		assert.Equal(t, "claude-sonnet-4-5", cfg.AI.Profiles[0].Model)
		assert.Equal(t, "gpt-4o-mini", cfg.AI.Profiles[1].Model)
	})

	t.Run("yaml files are accepted", func(t *testing.T) {
		clearKeyEnv(t)
		configPath := filepath.Join(t.TempDir(), "claii.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("max_steps: 5\ntools:\n  script_timeout: 10\n"), 0644))

		cfg, err := NewLoader(configPath).Load()
		require.NoError(t, err)
		assert.Equal(t, 5, cfg.MaxSteps)
		assert.Equal(t, 10, cfg.Tools.ScriptTimeout)
	})

	t.Run("environment overrides", func(t *testing.T) {
		clearKeyEnv(t)
		t.Chdir(t.TempDir())
		t.Setenv("CLAII_PROVIDER", "openai")
		t.Setenv("CLAII_MODEL", "gpt-4o")
		t.Setenv("CLAII_MEMORY_ENABLED", "false")
		t.Setenv("OPENAI_API_KEY", "sk-env")

		cfg, err := NewLoader("").Load()
		require.NoError(t, err)

		assert.Equal(t, "openai", cfg.Provider)
		assert.False(t, cfg.Memory.Enabled)
		require.Len(t, cfg.AI.Profiles, 1)
		assert.Equal(t, AIProfile{ID: "openai", Provider: "openai", APIKey: "sk-env", Model: "gpt-4o", Priority: 1}, cfg.AI.Profiles[0])
		assert.NoError(t, cfg.Validate())
	})

	t.Run("profiles without a key read the environment", func(t *testing.T) {
		clearKeyEnv(t)
		t.Setenv("GEMINI_API_KEY", "AIza-env")
		configPath := filepath.Join(t.TempDir(), "claii.json")
		require.NoError(t, os.WriteFile(configPath, []byte(`{"ai": {"profiles": [{"id": "g", "provider": "gemini"}]}}`), 0644))

		cfg, err := NewLoader(configPath).Load()
		require.NoError(t, err)
		assert.Equal(t, "AIza-env", cfg.AI.Profiles[0].APIKey)
		assert.Equal(t, "gemini-2.0-flash-001", cfg.AI.Profiles[0].Model)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "invalid.json")
		require.NoError(t, os.WriteFile(configPath, []byte("invalid json"), 0644))

		_, err := NewLoader(configPath).Load()
		assert.Error(t, err)
	})
}

func TestLoaderSave(t *testing.T) {
	clearKeyEnv(t)
	configPath := filepath.Join(t.TempDir(), "nested", "claii.json")
	loader := NewLoader(configPath)

	cfg := DefaultConfig()
	cfg.MaxSteps = 7
	cfg.Memory.MaxMessages = 50
	cfg.AI.Profiles = []AIProfile{{ID: "g", Provider: "gemini", APIKey: "AIza-saved", Model: "gemini-2.0-flash-001", Priority: 1}}
	require.NoError(t, loader.Save(cfg))

	loaded, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.MaxSteps)
	assert.Equal(t, 50, loaded.Memory.MaxMessages)
	assert.Equal(t, cfg.AI.Profiles, loaded.AI.Profiles)
}
