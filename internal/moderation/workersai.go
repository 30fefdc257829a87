package moderation

import (
	"context"
	"fmt"
)

// WorkersAIClassifier calls a Cloudflare Workers AI text model over REST.
type WorkersAIClassifier struct {
	client    apiClient
	accountID string
	model     string
}

// NewWorkersAIClassifier builds a client for
// POST {baseURL}/accounts/{accountID}/ai/run/{model}.
func NewWorkersAIClassifier(baseURL, accountID, model, token string) (*WorkersAIClassifier, error) {
	if accountID == "" {
		return nil, fmt.Errorf("account_id required for workersai classifier")
	}
	if model == "" {
		return nil, fmt.Errorf("model required for workersai classifier")
	}
	client, err := newAPIClient("workersai", baseURL, token)
	if err != nil {
		return nil, err
	}
	return &WorkersAIClassifier{client: client, accountID: accountID, model: model}, nil
}

type workersAIRequest struct {
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

func (c *WorkersAIClassifier) Classify(ctx context.Context, instruction, content string) (string, error) {
	path := "/accounts/" + c.accountID + "/ai/run/" + c.model
	raw, err := c.client.postJSON(ctx, path, workersAIRequest{
		Messages:  chatMessages(instruction, content),
		MaxTokens: 4,
	})
	if err != nil {
		return "", err
	}
	return ExtractDecisionToken(raw)
}

var _ Classifier = (*WorkersAIClassifier)(nil)
