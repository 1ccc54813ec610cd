package llm

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/pkg/errors"
)

type anthropicGenerator struct {
	client anthropic.Client
	config Config
}

func newAnthropicGenerator(config Config) (*anthropicGenerator, error) {
	if config.APIKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY not set")
	}

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	// retries are handled by withRetry
	opts = append(opts, option.WithMaxRetries(0))

	return &anthropicGenerator{
		client: anthropic.NewClient(opts...),
		config: config,
	}, nil
}

func (g *anthropicGenerator) Name() string {
	return ProviderAnthropic + "/" + g.config.Model
}

func (g *anthropicGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return withRetry(ctx, g.config.Retry, "Anthropic", func() (string, error) {
		message, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(g.config.Model),
			MaxTokens: int64(g.config.MaxTokens),
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if err != nil {
			return "", errors.Wrap(err, "anthropic request failed")
		}

		var sb strings.Builder
		for _, block := range message.Content {
			if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
				sb.WriteString(variant.Text)
			}
		}
		return sb.String(), nil
	})
}
