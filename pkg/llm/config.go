package llm

import (
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Provider names accepted by New.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGoogle    = "google"
)

// DefaultProvider is used when no provider is configured.
const DefaultProvider = ProviderGoogle

// DefaultMaxTokens bounds the length of a single generation.
const DefaultMaxTokens = 2000

var defaultModels = map[string]string{
	ProviderAnthropic: "claude-sonnet-4-20250514",
	ProviderOpenAI:    "gpt-4o-mini",
	ProviderGoogle:    "gemini-2.0-flash",
}

var apiKeyEnv = map[string][]string{
	ProviderAnthropic: {"ANTHROPIC_API_KEY"},
	ProviderOpenAI:    {"OPENAI_API_KEY"},
	ProviderGoogle:    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
}

// Providers returns the supported provider names.
func Providers() []string {
	return []string{ProviderAnthropic, ProviderGoogle, ProviderOpenAI}
}

// RetryConfig controls how failed provider calls are retried.
type RetryConfig struct {
	Attempts     int    `mapstructure:"attempts" json:"attempts" yaml:"attempts"`
	InitialDelay int    `mapstructure:"initial_delay_ms" json:"initial_delay_ms" yaml:"initial_delay_ms"`
	MaxDelay     int    `mapstructure:"max_delay_ms" json:"max_delay_ms" yaml:"max_delay_ms"`
	BackoffType  string `mapstructure:"backoff_type" json:"backoff_type" yaml:"backoff_type"` // "fixed" or "exponential"
}

// DefaultRetryConfig is applied when no attempts are configured.
var DefaultRetryConfig = RetryConfig{
	Attempts:     3,
	InitialDelay: 1000,
	MaxDelay:     10000,
	BackoffType:  "exponential",
}

// Config selects and configures a Generator.
type Config struct {
	Provider  string      `mapstructure:"provider" json:"provider" yaml:"provider"`
	Model     string      `mapstructure:"model" json:"model" yaml:"model"`
	APIKey    string      `mapstructure:"api_key" json:"-" yaml:"api_key"`
	BaseURL   string      `mapstructure:"base_url" json:"base_url,omitempty" yaml:"base_url"`
	MaxTokens int         `mapstructure:"max_tokens" json:"max_tokens" yaml:"max_tokens"`
	Retry     RetryConfig `mapstructure:"retry" json:"retry" yaml:"retry"`
}

// Normalize lowercases the provider, resolves aliases and fills defaults.
// The API key falls back to the provider's environment variable.
func (c Config) Normalize() Config {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	switch c.Provider {
	case "":
		c.Provider = DefaultProvider
	case "gemini":
		c.Provider = ProviderGoogle
	case "claude":
		c.Provider = ProviderAnthropic
	}
	if c.Model == "" {
		c.Model = defaultModels[c.Provider]
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Retry.Attempts == 0 {
		c.Retry = DefaultRetryConfig
	}
	if c.APIKey == "" {
		for _, env := range apiKeyEnv[c.Provider] {
			if v := os.Getenv(env); v != "" {
				c.APIKey = v
				break
			}
		}
	}
	return c
}

// GetConfigFromViper reads provider, model, api_key, base_url, max_tokens
// and the retry section from the global configuration.
func GetConfigFromViper() (Config, error) {
	config := Config{
		Provider:  viper.GetString("provider"),
		Model:     viper.GetString("model"),
		APIKey:    viper.GetString("api_key"),
		BaseURL:   viper.GetString("base_url"),
		MaxTokens: viper.GetInt("max_tokens"),
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &config.Retry,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return config, errors.Wrap(err, "failed to create retry config decoder")
	}
	if err := decoder.Decode(viper.GetStringMap("retry")); err != nil {
		return config, errors.Wrap(err, "failed to decode retry configuration")
	}

	return config.Normalize(), nil
}
