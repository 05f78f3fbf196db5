package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for lbm.
type Config struct {
	BaseDir string       `toml:"base_dir"`
	LogDir  string       `toml:"log_dir"`
	SiteURL string       `toml:"site_url"` // public base URL used in the exported feed
	Bridge  BridgeConfig `toml:"bridge"`
	Store   StoreConfig  `toml:"store"`
}

// BridgeConfig configures the upload bridge and its host backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type BridgeConfig struct {
	Type string `toml:"type"` // "memory", "filesystem", or "s3"

	// APIKey is the hosting account key the bridge peer accepts. For the
	// memory and filesystem backends it is checked directly; for s3 it
	// gates tokenization while the bucket credentials do the writing.
	APIKey string `toml:"api_key"`

	// SealerKeyPath stores the peer's age identity used to mint and verify
	// tokens. Generated on first use when missing. Empty means an
	// ephemeral per-process identity (memory backend only).
	SealerKeyPath string `toml:"sealer_key_path,omitempty"`

	TokenizeTimeoutSeconds int `toml:"tokenize_timeout_seconds"` // default 10
	UploadTimeoutSeconds   int `toml:"upload_timeout_seconds"`   // default 60

	// Filesystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket    string `toml:"s3_bucket,omitempty"`
	S3Prefix    string `toml:"s3_prefix,omitempty"`
	S3Region    string `toml:"s3_region,omitempty"`
	S3AccessKey string `toml:"s3_access_key,omitempty"`
	S3SecretKey string `toml:"s3_secret_key,omitempty"`
}

// StoreConfig configures the local persistence layer (config cache,
// reaction ledger, session record).
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type StoreConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// NewConfig creates a new Config with the provided base directory and defaults.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Bridge: BridgeConfig{
			Type:                   "filesystem",
			FSRoot:                 filepath.Join(baseDir, "site"),
			SealerKeyPath:          filepath.Join(baseDir, "keys", "bridge.key"),
			TokenizeTimeoutSeconds: 10,
			UploadTimeoutSeconds:   60,
		},
		Store: StoreConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "data"),
		},
	}
}

// TokenizeTimeoutOrDefault returns the configured tokenize timeout in
// seconds, defaulting to 10.
func (b BridgeConfig) TokenizeTimeoutOrDefault() int {
	if b.TokenizeTimeoutSeconds <= 0 {
		return 10
	}
	return b.TokenizeTimeoutSeconds
}

// UploadTimeoutOrDefault returns the configured upload timeout in seconds,
// defaulting to 60.
func (b BridgeConfig) UploadTimeoutOrDefault() int {
	if b.UploadTimeoutSeconds <= 0 {
		return 60
	}
	return b.UploadTimeoutSeconds
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

// writeToFile writes a Config to the specified file path.
// This is an internal helper and should not be exported.
func writeToFile(path string, cfg *Config) error {
	// Ensure the directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
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

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
