package config

import (
	"os"
	"strings"
	"time"
)

// ProviderConfig holds credentials and limits for one answer provider.
type ProviderConfig struct {
	APIKey        string        `yaml:"api_key"`
	APIKeyEnv     string        `yaml:"api_key_env"`
	Model         string        `yaml:"model"`
	Endpoint      string        `yaml:"endpoint"`
	Timeout       time.Duration `yaml:"timeout"`
	RatePerMinute int           `yaml:"rate_per_minute"`
}

// Key returns the API key, falling back to the api_key_env variable.
func (p ProviderConfig) Key() string {
	if v := strings.TrimSpace(p.APIKey); v != "" {
		return v
	}
	if env := strings.TrimSpace(p.APIKeyEnv); env != "" {
		return strings.TrimSpace(os.Getenv(env))
	}
	return ""
}

// ProvidersConfig is the `providers:` section, one entry per answer provider.
type ProvidersConfig struct {
	ChatGPT ProviderConfig `yaml:"chatgpt"`
	Claude  ProviderConfig `yaml:"claude"`
	Grok    ProviderConfig `yaml:"grok"`
}

// Get returns the configuration for a provider key (chatgpt, claude, grok).
func (p ProvidersConfig) Get(key string) (ProviderConfig, bool) {
	switch key {
	case ProviderChatGPT:
		return p.ChatGPT, true
	case ProviderClaude:
		return p.Claude, true
	case ProviderGrok:
		return p.Grok, true
	}
	return ProviderConfig{}, false
}

// ClassifierConfig configures the secondary LLM used for signal extraction.
type ClassifierConfig struct {
	Type            string        `yaml:"type"` // openai | anthropic
	APIKey          string        `yaml:"api_key"`
	APIKeyEnv       string        `yaml:"api_key_env"`
	Model           string        `yaml:"model"`
	Endpoint        string        `yaml:"endpoint"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxOutputTokens int           `yaml:"max_output_tokens"`
}

func (c ClassifierConfig) Key() string {
	return ProviderConfig{APIKey: c.APIKey, APIKeyEnv: c.APIKeyEnv}.Key()
}

type rawProviderConfig struct {
	Type            string        `yaml:"type"`
	APIKey          string        `yaml:"api_key"`
	APIKeyEnv       string        `yaml:"api_key_env"`
	Model           string        `yaml:"model"`
	Endpoint        string        `yaml:"endpoint"`
	Timeout         time.Duration `yaml:"timeout"`
	RatePerMinute   int           `yaml:"rate_per_minute"`
	MaxOutputTokens int           `yaml:"max_output_tokens"`
}

type rawProvidersConfig struct {
	ChatGPT rawProviderConfig `yaml:"chatgpt"`
	Claude  rawProviderConfig `yaml:"claude"`
	Grok    rawProviderConfig `yaml:"grok"`
}

func applyRawProviders(current ProvidersConfig, raw rawProvidersConfig) ProvidersConfig {
	current.ChatGPT = applyRawProvider(current.ChatGPT, raw.ChatGPT)
	current.Claude = applyRawProvider(current.Claude, raw.Claude)
	current.Grok = applyRawProvider(current.Grok, raw.Grok)
	return normalizeProviders(current)
}

func applyRawProvider(cfg ProviderConfig, raw rawProviderConfig) ProviderConfig {
	if v := strings.TrimSpace(raw.APIKey); v != "" {
		cfg.APIKey = v
	}
	if v := strings.TrimSpace(raw.APIKeyEnv); v != "" {
		cfg.APIKeyEnv = v
	}
	if v := strings.TrimSpace(raw.Model); v != "" {
		cfg.Model = v
	}
	if v := strings.TrimSpace(raw.Endpoint); v != "" {
		cfg.Endpoint = v
	}
	if raw.Timeout > 0 {
		cfg.Timeout = raw.Timeout
	}
	if raw.RatePerMinute > 0 {
		cfg.RatePerMinute = raw.RatePerMinute
	}
	return cfg
}

func applyRawClassifier(cfg ClassifierConfig, raw rawProviderConfig) ClassifierConfig {
	if v := strings.ToLower(strings.TrimSpace(raw.Type)); v != "" {
		cfg.Type = v
	}
	if v := strings.TrimSpace(raw.APIKey); v != "" {
		cfg.APIKey = v
	}
	if v := strings.TrimSpace(raw.APIKeyEnv); v != "" {
		cfg.APIKeyEnv = v
	}
	if v := strings.TrimSpace(raw.Model); v != "" {
		cfg.Model = v
	}
	if v := strings.TrimSpace(raw.Endpoint); v != "" {
		cfg.Endpoint = v
	}
	if raw.Timeout > 0 {
		cfg.Timeout = raw.Timeout
	}
	if raw.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = raw.MaxOutputTokens
	}
	return cfg
}

func normalizeProviders(p ProvidersConfig) ProvidersConfig {
	p.ChatGPT = normalizeProvider(p.ChatGPT)
	p.Claude = normalizeProvider(p.Claude)
	p.Grok = normalizeProvider(p.Grok)
	return p
}

func normalizeProvider(p ProviderConfig) ProviderConfig {
	if p.Timeout <= 0 {
		p.Timeout = defaultProviderTimeout
	}
	if p.RatePerMinute <= 0 {
		p.RatePerMinute = defaultRatePerMinute
	}
	p.Endpoint = strings.TrimRight(strings.TrimSpace(p.Endpoint), "/")
	return p
}

func normalizeProviderKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		k := strings.ToLower(strings.TrimSpace(key))
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
