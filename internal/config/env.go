package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables holding secrets. They are never written to the config file.
const (
	EnvClassifierToken = "RIVERBANK_CLASSIFIER_TOKEN"
	EnvRedisPassword   = "RIVERBANK_REDIS_PASSWORD"
	EnvS3AccessKeyID   = "RIVERBANK_S3_ACCESS_KEY_ID"
	EnvS3SecretKey     = "RIVERBANK_S3_SECRET_ACCESS_KEY"
)

// Secrets are credentials supplied through the environment.
type Secrets struct {
	ClassifierToken string
	RedisPassword   string

	// When both are empty the S3 vault falls back to the default AWS chain.
	S3AccessKeyID string
	S3SecretKey   string
}

// LoadSecrets loads envFile (if it exists) into the process environment and
// reads the secrets from it. Variables already set in the environment win
// over the file.
func LoadSecrets(envFile string) (Secrets, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Secrets{}, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}
	return Secrets{
		ClassifierToken: os.Getenv(EnvClassifierToken),
		RedisPassword:   os.Getenv(EnvRedisPassword),
		S3AccessKeyID:   os.Getenv(EnvS3AccessKeyID),
		S3SecretKey:     os.Getenv(EnvS3SecretKey),
	}, nil
}
