package config

import (
	"os"
	"strings"
)

var supportedProviders = []string{"gemini", "anthropic", "openai", "ollama", "groq", "mistral", "cohere", "deepseek", "openrouter"}

// defaultModels is used for profiles of a provider other than the
// configured one when they name no model.
var defaultModels = map[string]string{
	"gemini":    "gemini-2.0-flash-001",
	"anthropic": "claude-sonnet-4-5",
	"openai":    "gpt-4o-mini",
}

// keylessProviders run locally and need no API key.
var keylessProviders = map[string]bool{
	"ollama": true,
}

func isSupportedProvider(name string) bool {
	for _, p := range supportedProviders {
		if p == name {
			return true
		}
	}
	return false
}

func supportedList() string {
	return strings.Join(supportedProviders, ", ")
}

// APIKeyEnv returns the environment variable holding the provider's key.
func APIKeyEnv(provider string) string {
	return strings.ToUpper(provider) + "_API_KEY"
}

// resolveProfiles fills in keys and models from the environment. When no
// profile is configured, one is derived from the top-level provider.
func resolveProfiles(cfg *Config) {
	if len(cfg.AI.Profiles) == 0 {
		key := os.Getenv(APIKeyEnv(cfg.Provider))
		if key == "" && !keylessProviders[cfg.Provider] {
			return
		}
		cfg.AI.Profiles = []AIProfile{{
			ID:       cfg.Provider,
			Provider: cfg.Provider,
			APIKey:   key,
			Priority: 1,
		}}
	}

	for i := range cfg.AI.Profiles {
		p := &cfg.AI.Profiles[i]
		if p.APIKey == "" {
			p.APIKey = os.Getenv(APIKeyEnv(p.Provider))
		}
		if p.Model == "" {
			if p.Provider == cfg.Provider {
				p.Model = cfg.Model
			} else {
				p.Model = defaultModels[p.Provider]
			}
		}
	}
}

// UseProvider pins the run to provider, replacing any failover chain. A key
// already configured for that provider is kept. An empty provider only
// changes the model of the current provider's profiles.
func (c *Config) UseProvider(provider, model string) {
	if provider == "" || provider == c.Provider {
		if model == "" {
			return
		}
		c.Model = model
		for i := range c.AI.Profiles {
			if c.AI.Profiles[i].Provider == c.Provider {
				c.AI.Profiles[i].Model = model
			}
		}
		return
	}

	var key string
	for _, p := range c.AI.Profiles {
		if p.Provider == provider && p.APIKey != "" {
			key = p.APIKey
			break
		}
	}
	if model == "" {
		model = defaultModels[provider]
	}

	c.Provider = provider
	c.Model = model
	c.AI.Profiles = nil
	if key != "" {
		c.AI.Profiles = []AIProfile{{ID: provider, Provider: provider, APIKey: key, Priority: 1}}
	}
	resolveProfiles(c)
}
