package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Config represents the CLAII configuration
type Config struct {
	// Provider and model used when no AI profiles are configured
	Provider string `json:"provider" mapstructure:"provider"`
	Model    string `json:"model" mapstructure:"model"`

	// Project directory the tools are sandboxed to
	WorkingDir string `json:"working_dir" mapstructure:"working_dir"`

	MaxSteps    int     `json:"max_steps" mapstructure:"max_steps"`
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `json:"max_tokens" mapstructure:"max_tokens"`
	MaxRetries  int     `json:"max_retries" mapstructure:"max_retries"`

	Memory  MemoryConfig  `json:"memory" mapstructure:"memory"`
	Tools   ToolsConfig   `json:"tools" mapstructure:"tools"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`
	AI      AIConfig      `json:"ai" mapstructure:"ai"`
}

// MemoryConfig controls conversation persistence between runs
type MemoryConfig struct {
	Enabled     bool   `json:"enabled" mapstructure:"enabled"`
	Prune       bool   `json:"prune" mapstructure:"prune"`
	Backend     string `json:"backend" mapstructure:"backend"` // json, sqlite
	Path        string `json:"path" mapstructure:"path"`       // relative to the current directory
	MaxMessages int    `json:"max_messages" mapstructure:"max_messages"`
}

// ToolsConfig holds tool limits and access policy
type ToolsConfig struct {
	MaxFileChars    int      `json:"max_file_chars" mapstructure:"max_file_chars"`
	MaxKBChars      int      `json:"max_kb_chars" mapstructure:"max_kb_chars"`
	KBDir           string   `json:"kb_dir" mapstructure:"kb_dir"`
	ScriptTimeout   int      `json:"script_timeout" mapstructure:"script_timeout"` // seconds
	Interpreter     string   `json:"interpreter" mapstructure:"interpreter"`
	ScriptExtension string   `json:"script_extension" mapstructure:"script_extension"`
	Allow           []string `json:"allow" mapstructure:"allow"`
	Deny            []string `json:"deny" mapstructure:"deny"`
}

// ScriptTimeoutDuration returns the script timeout as a duration.
func (t ToolsConfig) ScriptTimeoutDuration() time.Duration {
	return time.Duration(t.ScriptTimeout) * time.Second
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
	AuditFile string `json:"audit_file" mapstructure:"audit_file"`
}

// MetricsConfig controls the metrics dump written at exit
type MetricsConfig struct {
	Textfile string `json:"textfile" mapstructure:"textfile"`
}

// TracingConfig controls OpenTelemetry
type TracingConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

// AIConfig holds AI provider configuration
type AIConfig struct {
	Profiles []AIProfile `json:"profiles" mapstructure:"profiles"`
}

// AIProfile represents an AI provider profile
type AIProfile struct {
	ID       string `json:"id" mapstructure:"id"`
	Provider string `json:"provider" mapstructure:"provider"`
	APIKey   string `json:"api_key" mapstructure:"api_key"`
	Model    string `json:"model" mapstructure:"model"`
	Priority int    `json:"priority" mapstructure:"priority"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Provider:   "gemini",
		Model:      "gemini-2.0-flash-001",
		WorkingDir: ".",
		MaxSteps:   20,
		MaxRetries: 3,
		Memory: MemoryConfig{
			Enabled:     true,
			Prune:       true,
			Backend:     "json",
			Path:        ".claii_memory.json",
			MaxMessages: 200,
		},
		Tools: ToolsConfig{
			MaxFileChars:    10000,
			MaxKBChars:      10000,
			KBDir:           "kb",
			ScriptTimeout:   30,
			Interpreter:     "python3",
			ScriptExtension: ".py",
			Allow:           []string{"*"},
			Deny:            []string{},
		},
		Logging: LoggingConfig{
			Level:     "warn",
			Console:   true,
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		AI: AIConfig{
			Profiles: []AIProfile{},
		},
	}
}

// String returns a JSON representation of the config with API keys masked
func (c *Config) String() string {
	masked := *c
	masked.AI.Profiles = make([]AIProfile, len(c.AI.Profiles))
	for i, p := range c.AI.Profiles {
		if p.APIKey != "" {
			p.APIKey = "[REDACTED]"
		}
		masked.AI.Profiles[i] = p
	}
	data, _ := json.MarshalIndent(&masked, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if len(c.AI.Profiles) == 0 {
		return fmt.Errorf("no AI credentials configured: set %s or add an ai.profiles entry", APIKeyEnv(c.Provider))
	}

	for i, profile := range c.AI.Profiles {
		if profile.ID == "" {
			return fmt.Errorf("AI profile %d: ID is required", i)
		}
		if profile.Provider == "" {
			return fmt.Errorf("AI profile %s: provider is required", profile.ID)
		}
		if !isSupportedProvider(profile.Provider) {
			return fmt.Errorf("AI profile %s: invalid provider %s (must be one of: %s)", profile.ID, profile.Provider, supportedList())
		}
		if profile.APIKey == "" && !keylessProviders[profile.Provider] {
			return fmt.Errorf("AI profile %s: api_key is required", profile.ID)
		}
	}

	if c.MaxSteps <= 0 {
		return fmt.Errorf("max_steps must be positive")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens cannot be negative")
	}

	if c.Memory.Backend != "json" && c.Memory.Backend != "sqlite" {
		return fmt.Errorf("invalid memory backend: %s (must be json or sqlite)", c.Memory.Backend)
	}
	if c.Memory.Enabled && c.Memory.Path == "" {
		return fmt.Errorf("memory.path is required when memory is enabled")
	}
	if c.Memory.MaxMessages <= 0 {
		return fmt.Errorf("memory.max_messages must be positive")
	}

	if c.Tools.MaxFileChars <= 0 || c.Tools.MaxKBChars <= 0 {
		return fmt.Errorf("tool character limits must be positive")
	}
	if c.Tools.ScriptTimeout <= 0 {
		return fmt.Errorf("tools.script_timeout must be positive")
	}
	if c.Tools.Interpreter == "" {
		return fmt.Errorf("tools.interpreter is required")
	}

	return nil
}
