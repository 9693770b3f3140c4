package llm

import (
	"context"
	"fmt"
	"math"

	"github.com/revrost/go-openrouter"
)

// Completer returns a single text completion for a prompt
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// DefaultOpenRouterModel is used when no model is configured
const DefaultOpenRouterModel = "openai/gpt-4o-mini"

// deterministic is the smallest non-zero temperature; a zero value is
// dropped from the request and the provider default applies instead.
const deterministic = math.SmallestNonzeroFloat32

// Client completes prompts through OpenRouter
type Client struct {
	openRouterClient *openrouter.Client
	model            string
}

func NewClient(apiKey, model string, opts ...openrouter.Option) *Client {
	if model == "" {
		model = DefaultOpenRouterModel
	}
	return &Client{
		openRouterClient: openrouter.NewClient(apiKey, opts...),
		model:            model,
	}
}

// Model returns the model requests are sent to
func (c *Client) Model() string { return c.model }

func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	request := openrouter.ChatCompletionRequest{
		Model: c.model,
		Messages: []openrouter.ChatCompletionMessage{
			{
				Role:    openrouter.ChatMessageRoleUser,
				Content: openrouter.Content{Text: prompt},
			},
		},
		Temperature: deterministic,
		N:           1,
	}

	response, err := c.openRouterClient.CreateChatCompletion(ctx, request)
	if err != nil {
		return "", fmt.Errorf("failed to create completion: %w", err)
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}

	return response.Choices[0].Message.Content.Text, nil
}
