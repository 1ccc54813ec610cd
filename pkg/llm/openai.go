package llm

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

type openAIGenerator struct {
	client *openai.Client
	config Config
}

func newOpenAIGenerator(config Config) (*openAIGenerator, error) {
	if config.APIKey == "" && config.BaseURL == "" {
		return nil, errors.New("OPENAI_API_KEY not set")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &openAIGenerator{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

func (g *openAIGenerator) Name() string {
	return ProviderOpenAI + "/" + g.config.Model
}

func (g *openAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return withRetry(ctx, g.config.Retry, "OpenAI", func() (string, error) {
		resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:     g.config.Model,
			MaxTokens: g.config.MaxTokens,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			return "", errors.Wrap(err, "openai request failed")
		}
		if len(resp.Choices) == 0 {
			return "", nil
		}
		return resp.Choices[0].Message.Content, nil
	})
}
