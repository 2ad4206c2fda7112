package ai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/exp/slog"
)

type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
	log         *slog.Logger
}

// NewOpenAIClient talks to the OpenAI API. baseURL is only set in tests.
func NewOpenAIClient(log *slog.Logger, apiKey, model string, temperature float32, baseURL string) *OpenAIClient {
	if model == "" {
		model = openai.GPT4oMini
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		temperature: temperature,
		log:         log.With(slog.String("component", "openai")),
	}
}

var errEmptyChoices = errors.New("empty choices")

func (c *OpenAIClient) GetReply(ctx context.Context, msgs []Message) (string, error) {
	const op = "ai.OpenAIClient.GetReply"

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(msgs)),
	}
	for _, m := range msgs {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Text,
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: %w", op, errEmptyChoices)
	}

	raw := resp.Choices[0].Message.Content
	c.log.Debug("model reply", slog.Int("runes", len([]rune(raw))), slog.String("model", c.model))
	return raw, nil
}
