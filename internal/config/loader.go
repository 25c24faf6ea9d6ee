package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// DefaultConfigFile is looked up in the current directory when no path is given.
const DefaultConfigFile = "claii.json"

// EnvPrefix prefixes every environment override, e.g. CLAII_MODEL.
const EnvPrefix = "CLAII"

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load reads defaults, then the config file (if any), then CLAII_*
// environment overrides. Provider API keys come from <PROVIDER>_API_KEY
// when a profile has none.
func (l *Loader) Load() (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := l.GetConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if l.configPath != "" {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	resolveProfiles(cfg)

	return cfg, nil
}

// setDefaults registers every key so environment overrides reach Unmarshal.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("provider", d.Provider)
	v.SetDefault("model", d.Model)
	v.SetDefault("working_dir", d.WorkingDir)
	v.SetDefault("max_steps", d.MaxSteps)
	v.SetDefault("temperature", d.Temperature)
	v.SetDefault("max_tokens", d.MaxTokens)
	v.SetDefault("max_retries", d.MaxRetries)

	v.SetDefault("memory.enabled", d.Memory.Enabled)
	v.SetDefault("memory.prune", d.Memory.Prune)
	v.SetDefault("memory.backend", d.Memory.Backend)
	v.SetDefault("memory.path", d.Memory.Path)
	v.SetDefault("memory.max_messages", d.Memory.MaxMessages)

	v.SetDefault("tools.max_file_chars", d.Tools.MaxFileChars)
	v.SetDefault("tools.max_kb_chars", d.Tools.MaxKBChars)
	v.SetDefault("tools.kb_dir", d.Tools.KBDir)
	v.SetDefault("tools.script_timeout", d.Tools.ScriptTimeout)
	v.SetDefault("tools.interpreter", d.Tools.Interpreter)
	v.SetDefault("tools.script_extension", d.Tools.ScriptExtension)
	v.SetDefault("tools.allow", d.Tools.Allow)
	v.SetDefault("tools.deny", d.Tools.Deny)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.console", d.Logging.Console)
	v.SetDefault("logging.max_size", d.Logging.MaxSize)
	v.SetDefault("logging.max_age", d.Logging.MaxAge)
	v.SetDefault("logging.compress", d.Logging.Compress)
	v.SetDefault("logging.redaction", d.Logging.Redaction)
	v.SetDefault("logging.audit_file", d.Logging.AuditFile)

	v.SetDefault("metrics.textfile", d.Metrics.Textfile)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("ai.profiles", d.AI.Profiles)
}

// Save saves the configuration to file
func (l *Loader) Save(cfg *Config) error {
	configPath := l.GetConfigPath()

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	if filepath.Ext(configPath) == "" {
		v.SetConfigType("json")
	}

	// Round trip through JSON so every format gets the snake_case keys.
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	var settings map[string]interface{}
	if err := json.Unmarshal(data, &settings); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := v.MergeConfigMap(settings); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}
	return DefaultConfigFile
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	loader := NewLoader(configPath)
	return loader.Load()
}
