// Package moderation screens bottle content with an external text classifier.
package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Instruction is the fixed system prompt sent with every classification.
const Instruction = "You are a content moderator. Return only '1' if you are fully sure the content contains hate speech, harassment, explicit or violent content, spam or scam solicitation, or personally identifying information. Return only '0' if it is safe. Output the integer only, nothing else."

// Classifier sends content to a model and returns its raw decision token.
type Classifier interface {
	Classify(ctx context.Context, instruction, content string) (string, error)
}

// ComposeContent builds the text that is classified for a submission.
// The nickname is included because it is shown to other users too.
func ComposeContent(message, nickname string) string {
	message = strings.TrimSpace(message)
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return message
	}
	return "Message: " + message + "\nNickname: " + nickname
}

// StaticClassifier always answers with Token. Used in development and tests.
type StaticClassifier struct {
	Token string
}

func (c StaticClassifier) Classify(context.Context, string, string) (string, error) {
	return c.Token, nil
}

// APIError represents a non-2xx response from a classifier API.
type APIError struct {
	Provider string
	Status   int
	Message  string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s classifier error (%d): %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s classifier error (%d)", e.Provider, e.Status)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func chatMessages(instruction, content string) []chatMessage {
	return []chatMessage{
		{Role: "system", Content: instruction},
		{Role: "user", Content: "Evaluate: " + content},
	}
}

// apiClient holds what the HTTP-backed classifiers share.
type apiClient struct {
	provider   string
	baseURL    string
	token      string
	httpClient *http.Client
}

func newAPIClient(provider, baseURL, token string) (apiClient, error) {
	normalized, err := NormalizeBaseURL(baseURL)
	if err != nil {
		return apiClient{}, err
	}
	return apiClient{
		provider: provider,
		baseURL:  normalized,
		token:    token,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}, nil
}

// NormalizeBaseURL trims trailing slashes and ensures the URL has a scheme.
func NormalizeBaseURL(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", fmt.Errorf("classifier base url cannot be empty")
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return "", fmt.Errorf("invalid classifier base url: %w", err)
	}
	if parsed.Scheme == "" {
		return "", fmt.Errorf("classifier base url must include scheme (https://)")
	}
	return strings.TrimRight(value, "/"), nil
}

// postJSON posts reqBody to path and returns the raw response body.
func (c apiClient) postJSON(ctx context.Context, path string, reqBody any) ([]byte, error) {
	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respData, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			Provider: c.provider,
			Status:   resp.StatusCode,
			Message:  strings.TrimSpace(string(respData)),
		}
	}
	return respData, nil
}
