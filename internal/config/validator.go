package config

import (
	"fmt"
	"strings"
)

// Validator checks values that are legal but probably mistaken. Its findings
// are warnings; Config.Validate is the hard gate.
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		if keylessProviders[provider] {
			return nil
		}
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	case "gemini":
		if !strings.HasPrefix(key, "AIza") {
			return fmt.Errorf("invalid Gemini API key format (should start with AIza)")
		}
	}

	return nil
}

// ValidateModel checks that a model name plausibly belongs to the provider.
func (v *Validator) ValidateModel(model, provider string) error {
	if model == "" {
		return nil // provider default
	}

	prefixes := map[string][]string{
		"gemini":    {"gemini-"},
		"anthropic": {"claude-"},
		"openai":    {"gpt-", "o1", "o3", "o4"},
	}
	known, ok := prefixes[provider]
	if !ok {
		return nil
	}
	for _, prefix := range known {
		if strings.HasPrefix(model, prefix) {
			return nil
		}
	}
	return fmt.Errorf("model %s does not look like a %s model", model, provider)
}

// ValidateTemperature validates temperature value
func (v *Validator) ValidateTemperature(temp float64) error {
	if temp < 0 || temp > 1 {
		return fmt.Errorf("temperature above 1 makes tool calls unreliable, got %.2f", temp)
	}
	return nil
}

// ValidateMaxTokens validates max tokens value
func (v *Validator) ValidateMaxTokens(tokens int) error {
	if tokens == 0 {
		return nil
	}
	if tokens < 256 {
		return fmt.Errorf("max tokens %d is too small for tool calls", tokens)
	}
	if tokens > 200000 {
		return fmt.Errorf("max tokens too large (max 200000), got %d", tokens)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"trace", "debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateToolNames reports policy entries that name no known tool.
func (v *Validator) ValidateToolNames(names, known []string) error {
	var unknown []string
	for _, name := range names {
		if name == "*" {
			continue
		}
		found := false
		for _, k := range known {
			if name == k {
				found = true
				break
			}
		}
		if !found {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("unknown tools in policy: %s", strings.Join(unknown, ", "))
	}
	return nil
}

// ValidateConfig returns every warning for cfg. knownTools may be nil to skip
// the policy check.
func (v *Validator) ValidateConfig(cfg *Config, knownTools []string) []error {
	var errors []error

	for i, profile := range cfg.AI.Profiles {
		if err := v.ValidateAPIKey(profile.APIKey, profile.Provider); err != nil {
			errors = append(errors, fmt.Errorf("AI profile %d (%s): %w", i, profile.ID, err))
		}
		if err := v.ValidateModel(profile.Model, profile.Provider); err != nil {
			errors = append(errors, fmt.Errorf("AI profile %d (%s): %w", i, profile.ID, err))
		}
	}

	if err := v.ValidateTemperature(cfg.Temperature); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateMaxTokens(cfg.MaxTokens); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	if knownTools != nil {
		policy := append(append([]string{}, cfg.Tools.Allow...), cfg.Tools.Deny...)
		if err := v.ValidateToolNames(policy, knownTools); err != nil {
			errors = append(errors, err)
		}
	}

	if cfg.MaxSteps > 100 {
		errors = append(errors, fmt.Errorf("max_steps %d allows very long runs", cfg.MaxSteps))
	}

	return errors
}
