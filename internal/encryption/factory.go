package encryption

import (
	"fmt"

	"riverbank/internal/config"
	"riverbank/internal/riverbank"
)

// NewSealerFromConfig creates an OriginSealer based on the sealing config type.
func NewSealerFromConfig(cfg config.SealingConfig) (riverbank.OriginSealer, error) {
	switch cfg.Type {
	case "none", "":
		return riverbank.PlainOrigins{}, nil
	case "age":
		keys := NewAgeKeys(cfg)
		if !keys.IsConfigured() {
			return nil, fmt.Errorf("sealing keys not found at %s (run 'riverbank keys init')", cfg.PublicKeyPath)
		}
		return keys.Sealer()
	default:
		return nil, fmt.Errorf("unknown sealing type: %q", cfg.Type)
	}
}
