package moderation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoDecision is returned when a response carries no recognisable token.
var ErrNoDecision = errors.New("no decision token in classifier response")

// ExtractDecisionToken pulls the model's answer out of the response shapes
// produced by the supported providers:
//
//	"0"                                                   bare JSON string
//	0                                                     bare number
//	{"response": "0"}                                     workers AI, unwrapped
//	{"result": {"response": "0"}}                         workers AI REST envelope
//	{"choices": [{"message": {"content": "0"}}]}          chat completions
//	{"output": [{"type": "message", "content": [{"text": "0"}]}]}
//
// A body that is not JSON at all is treated as the token itself.
// The returned token is trimmed.
func ExtractDecisionToken(raw []byte) (string, error) {
	body := strings.TrimSpace(string(raw))
	if body == "" {
		return "", ErrNoDecision
	}

	var v any
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return body, nil
	}

	token, ok := findToken(v, 0)
	if !ok {
		return "", fmt.Errorf("%w: %.120s", ErrNoDecision, body)
	}
	return strings.TrimSpace(token), nil
}

const maxEnvelopeDepth = 4

func findToken(v any, depth int) (string, bool) {
	if depth > maxEnvelopeDepth {
		return "", false
	}

	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return fmt.Sprint(t), true
	case map[string]any:
		if r, ok := t["response"]; ok {
			if s, ok := scalar(r); ok {
				return s, true
			}
		}
		if choices, ok := t["choices"].([]any); ok && len(choices) > 0 {
			if s, ok := choiceText(choices[0]); ok {
				return s, true
			}
		}
		if output, ok := t["output"].([]any); ok {
			if s, ok := outputText(output); ok {
				return s, true
			}
		}
		if result, ok := t["result"]; ok {
			return findToken(result, depth+1)
		}
	}
	return "", false
}

func scalar(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64, bool:
		return fmt.Sprint(t), true
	}
	return "", false
}

func choiceText(v any) (string, bool) {
	choice, ok := v.(map[string]any)
	if !ok {
		return "", false
	}
	if msg, ok := choice["message"].(map[string]any); ok {
		if s, ok := msg["content"].(string); ok {
			return s, true
		}
	}
	if s, ok := choice["text"].(string); ok {
		return s, true
	}
	return "", false
}

func outputText(items []any) (string, bool) {
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok || m["type"] != "message" {
			continue
		}
		parts, _ := m["content"].([]any)
		for _, part := range parts {
			p, ok := part.(map[string]any)
			if !ok {
				continue
			}
			if s, ok := p["text"].(string); ok {
				return s, true
			}
		}
	}
	return "", false
}
