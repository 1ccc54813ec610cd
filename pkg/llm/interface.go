package llm

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// Generator turns a single prompt into a text completion.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	// Name identifies the provider and model, e.g. "google/gemini-2.0-flash".
	Name() string
}

// GeneratorFunc adapts a function into a Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Name reports a fixed name for function generators.
func (f GeneratorFunc) Name() string { return "func" }

// New builds the Generator for config.Provider.
func New(ctx context.Context, config Config) (Generator, error) {
	config = config.Normalize()

	switch config.Provider {
	case ProviderAnthropic:
		return newAnthropicGenerator(config)
	case ProviderOpenAI:
		return newOpenAIGenerator(config)
	case ProviderGoogle:
		return newGoogleGenerator(ctx, config)
	default:
		return nil, errors.Errorf("unknown provider: %s. Available: %s", config.Provider, strings.Join(Providers(), ", "))
	}
}
