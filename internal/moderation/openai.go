package moderation

import (
	"context"
	"fmt"
)

// OpenAIClassifier calls any OpenAI-compatible chat completions endpoint.
type OpenAIClassifier struct {
	client apiClient
	model  string
}

func NewOpenAIClassifier(baseURL, model, token string) (*OpenAIClassifier, error) {
	if model == "" {
		return nil, fmt.Errorf("model required for openai classifier")
	}
	client, err := newAPIClient("openai", baseURL, token)
	if err != nil {
		return nil, err
	}
	return &OpenAIClassifier{client: client, model: model}, nil
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

func (c *OpenAIClassifier) Classify(ctx context.Context, instruction, content string) (string, error) {
	raw, err := c.client.postJSON(ctx, "/chat/completions", chatCompletionRequest{
		Model:     c.model,
		Messages:  chatMessages(instruction, content),
		MaxTokens: 4,
	})
	if err != nil {
		return "", err
	}
	return ExtractDecisionToken(raw)
}

var _ Classifier = (*OpenAIClassifier)(nil)
