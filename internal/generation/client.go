// Package generation produces test suites, implementations and repairs
// through a chat completion model. All text post-processing lives here so
// the orchestrator only ever sees clean Python source.
package generation

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const defaultMaxTokens = 2048

// Client is the minimal completion surface the service needs. Fakes
// implement it in tests.
type Client interface {
	Complete(ctx context.Context, prompt string, temperature float32) (string, error)
}

// OpenAIClient calls the OpenAI chat completion API
type OpenAIClient struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewOpenAIClient builds a client for the given model. The API key comes
// from the OPENAI_API_KEY environment variable.
func NewOpenAIClient(model string) (*OpenAIClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	if model == "" {
		model = "gpt-4o-mini"
		slog.Warn("model not set, defaulting", "model", model)
	}
	return &OpenAIClient{
		client:    openai.NewClient(apiKey),
		model:     model,
		maxTokens: defaultMaxTokens,
	}, nil
}

// Complete sends one user prompt and returns the raw completion text
func (o *OpenAIClient) Complete(ctx context.Context, prompt string, temperature float32) (string, error) {
	slog.Debug("requesting completion", "model", o.model, "temperature", temperature)

	req := openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: temperature,
		MaxTokens:   o.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("chat completion returned empty content")
	}
	return content, nil
}
