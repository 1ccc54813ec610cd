package llm

import (
	"context"

	"github.com/pkg/errors"
	"google.golang.org/genai"
)

type googleGenerator struct {
	client *genai.Client
	config Config
}

func newGoogleGenerator(ctx context.Context, config Config) (*googleGenerator, error) {
	if config.APIKey == "" {
		return nil, errors.New("GEMINI_API_KEY not set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  config.APIKey,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Google GenAI client")
	}

	return &googleGenerator{client: client, config: config}, nil
}

func (g *googleGenerator) Name() string {
	return ProviderGoogle + "/" + g.config.Model
}

func (g *googleGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return withRetry(ctx, g.config.Retry, "Google", func() (string, error) {
		resp, err := g.client.Models.GenerateContent(ctx, g.config.Model, genai.Text(prompt), &genai.GenerateContentConfig{
			MaxOutputTokens: int32(g.config.MaxTokens),
		})
		if err != nil {
			return "", errors.Wrap(err, "google request failed")
		}
		return resp.Text(), nil
	})
}
