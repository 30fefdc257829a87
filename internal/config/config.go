package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for riverbank.
type Config struct {
	InstanceID      string           `toml:"instance_id"`
	BaseDir         string           `toml:"base_dir"`
	LogDir          string           `toml:"log_dir"`
	ReportThreshold int64            `toml:"report_threshold"` // 0 keeps reported bottles in circulation
	Server          ServerConfig     `toml:"server"`
	Database        DatabaseConfig   `toml:"database"`
	Moderation      ModerationConfig `toml:"moderation"`
	RateLimit       RateLimitConfig  `toml:"rate_limit"`
	Sealing         SealingConfig    `toml:"sealing"`
	Vault           VaultConfig      `toml:"vault"`
}

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	Addr           string   `toml:"addr"`
	PathPrefix     string   `toml:"path_prefix"`
	OriginHeaders  []string `toml:"origin_headers"` // checked in order; X-Forwarded-For uses its first hop
	AllowedOrigins []string `toml:"allowed_origins"`
	AllowLocalhost bool     `toml:"allow_localhost"`
	MaxConcurrent  int      `toml:"max_concurrent"` // 0 disables the cap
	ReadTimeout    Duration `toml:"read_timeout"`
	WriteTimeout   Duration `toml:"write_timeout"`
	IdleTimeout    Duration `toml:"idle_timeout"`
}

// DatabaseConfig represents configuration for the bottle store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// ModerationConfig selects the content classifier.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type ModerationConfig struct {
	Type    string   `toml:"type"` // "workersai", "openai" or "static"
	Timeout Duration `toml:"timeout"`

	// Remote classifier fields (Type == "workersai" or "openai").
	// The API token is read from the environment, never from this file.
	BaseURL   string `toml:"base_url,omitempty"`
	AccountID string `toml:"account_id,omitempty"` // workersai only
	Model     string `toml:"model,omitempty"`

	// Static classifier field (Type == "static")
	StaticVerdict string `toml:"static_verdict,omitempty"`
}

// RateLimitConfig holds per-action quotas and the backend that enforces them.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type RateLimitConfig struct {
	Type          string   `toml:"type"` // "memory", "redis" or "none"
	Window        Duration `toml:"window"`
	Throw         int      `toml:"throw"`
	Report        int      `toml:"report"`
	React         int      `toml:"react"`
	FalsePositive int      `toml:"false_positive"`

	// Redis-specific fields (only used when Type == "redis")
	RedisAddr   string `toml:"redis_addr,omitempty"`
	RedisDB     int    `toml:"redis_db,omitempty"`
	RedisPrefix string `toml:"redis_prefix,omitempty"`
}

// SealingConfig controls how origin addresses are stored.
type SealingConfig struct {
	Type           string `toml:"type"` // "none" or "age"
	PublicKeyPath  string `toml:"public_key_path,omitempty"`
	PrivateKeyPath string `toml:"private_key_path,omitempty"`
}

// VaultConfig represents the destination for database snapshots.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "memory", "s3", or "filesystem"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"` // for S3-compatible stores

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// Duration is a time.Duration written as a string such as "5s" in TOML.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// Or returns d, or fallback when d is zero.
func (d Duration) Or(fallback time.Duration) time.Duration {
	if d.Duration <= 0 {
		return fallback
	}
	return d.Duration
}

// NewConfig creates a new Config with the provided values and production defaults.
func NewConfig(instanceID, baseDir string) *Config {
	return &Config{
		InstanceID: instanceID,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
		Server: ServerConfig{
			Addr:           ":8787",
			PathPrefix:     "/api",
			OriginHeaders:  []string{"CF-Connecting-IP", "X-Forwarded-For"},
			AllowedOrigins: []string{"https://riverbank.day", "https://uat-riverbank-day.workers.dev"},
			AllowLocalhost: true,
			ReadTimeout:    Duration{30 * time.Second},
			WriteTimeout:   Duration{30 * time.Second},
			IdleTimeout:    Duration{90 * time.Second},
		},
		Database: DatabaseConfig{Type: "sqlite", DataDir: filepath.Join(baseDir, "db")},
		Moderation: ModerationConfig{
			Type:    "workersai",
			Timeout: Duration{5 * time.Second},
			BaseURL: "https://api.cloudflare.com/client/v4",
			Model:   "@cf/meta/llama-3.1-8b-instruct",
		},
		RateLimit: RateLimitConfig{
			Type:          "memory",
			Window:        Duration{time.Minute},
			Throw:         5,
			Report:        20,
			React:         20,
			FalsePositive: 5,
		},
		Sealing: SealingConfig{
			Type:           "none",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "origins.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "origins.key"),
		},
		Vault: VaultConfig{
			Type:        "filesystem",
			Name:        "local",
			FSVaultRoot: filepath.Join(baseDir, "snapshots"),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes a new config file at path. It refuses to overwrite an existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
