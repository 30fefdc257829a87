package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Environment variables that override the default locations.
const (
	EnvConfigPath = "RIVERBANK_CONFIG_PATH"
	EnvHome       = "RIVERBANK_HOME"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - RIVERBANK_CONFIG_PATH: config file location (default: ~/.config/riverbank.toml)
//   - RIVERBANK_HOME: base directory for riverbank data (default: ~/.local/share/riverbank)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"env_file":    filepath.Join(filepath.Dir(configPath), "riverbank.env"),
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

func getConfigPath() (string, error) {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "riverbank.toml"), nil
}

func getBaseDir() (string, error) {
	if path := os.Getenv(EnvHome); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "riverbank"), nil
}
