package moderation

import (
	"fmt"

	"riverbank/internal/config"
)

// NewClassifierFromConfig creates a Classifier based on the moderation config type.
// token authenticates against remote providers and comes from the environment.
func NewClassifierFromConfig(cfg config.ModerationConfig, token string) (Classifier, error) {
	switch cfg.Type {
	case "workersai":
		return NewWorkersAIClassifier(cfg.BaseURL, cfg.AccountID, cfg.Model, token)
	case "openai":
		return NewOpenAIClassifier(cfg.BaseURL, cfg.Model, token)
	case "static":
		verdict := cfg.StaticVerdict
		if verdict == "" {
			verdict = "0"
		}
		return StaticClassifier{Token: verdict}, nil
	default:
		return nil, fmt.Errorf("unknown moderation type: %s", cfg.Type)
	}
}
