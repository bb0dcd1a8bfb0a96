package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"

	"mcard-go/internal/hashing"
)

// Defaults applied by NewConfig and ApplyDefaults.
const (
	DefaultMaxConnections     = 4
	DefaultLockTimeoutSeconds = 5
	DefaultMaxIngestBytes     = 50 << 20 // 50 MiB
	DefaultReadTimeoutSeconds = 30
	DefaultServerAddr         = "127.0.0.1:8080"
	DefaultRegion             = "UTC"
	DefaultCompression        = "zstd"
	DefaultLogLevel           = "info"
)

// Environment variables that override file settings.
const (
	EnvStorePath            = "MCARD_STORE_PATH"
	EnvDefaultHashAlgorithm = "MCARD_DEFAULT_HASH_ALGORITHM"
	EnvMaxConnections       = "MCARD_MAX_CONNECTIONS"
	EnvLockTimeoutSeconds   = "MCARD_LOCK_TIMEOUT_SECONDS"
	EnvMaxIngestBytes       = "MCARD_MAX_INGEST_BYTES"
	EnvReadTimeoutSeconds   = "MCARD_READ_TIMEOUT_SECONDS"
	EnvS3AccessKeyID        = "MCARD_S3_ACCESS_KEY_ID"
	EnvS3SecretAccessKey    = "MCARD_S3_SECRET_ACCESS_KEY"
)

// Config represents the main configuration for mcard.
type Config struct {
	StoreID  string         `toml:"store_id"`
	BaseDir  string         `toml:"base_dir"`
	LogDir   string         `toml:"log_dir"`
	LogLevel string         `toml:"log_level"` // "debug", "info", "warn" or "error"
	Store    StoreConfig    `toml:"store"`
	Hash     HashConfig     `toml:"hash"`
	Ingest   IngestConfig   `toml:"ingest"`
	Server   ServerConfig   `toml:"server"`
	Snapshot SnapshotConfig `toml:"snapshot"`
}

// StoreConfig describes the card store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type StoreConfig struct {
	Type               string `toml:"type"`           // "sqlite" or "memory"
	Path               string `toml:"path,omitempty"` // only used for type=sqlite
	MaxConnections     int    `toml:"max_connections"`
	LockTimeoutSeconds int    `toml:"lock_timeout_seconds"`
}

// HashConfig selects how new cards are addressed and stamped.
type HashConfig struct {
	DefaultAlgorithm string `toml:"default_algorithm"`
	Region           string `toml:"region"`
}

// IngestConfig bounds reads of external files and request bodies.
type IngestConfig struct {
	MaxBytes           int64 `toml:"max_bytes"`
	ReadTimeoutSeconds int   `toml:"read_timeout_seconds"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// SnapshotConfig describes where and how store snapshots are written.
type SnapshotConfig struct {
	Compression string           `toml:"compression"` // "zstd" (default), "lz4" or "none"
	Vault       VaultConfig      `toml:"vault"`
	Encryption  EncryptionConfig `toml:"encryption"`
}

// VaultConfig represents configuration for a snapshot vault backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "memory", "s3", or "filesystem"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"`

	// Static credentials come from the environment only. When unset the
	// default AWS credential chain is used.
	S3AccessKeyID     string `toml:"-"`
	S3SecretAccessKey string `toml:"-"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used for snapshots.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default), "test" or "none"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// NewConfig creates a new Config with the provided values and defaults for
// everything else. The store lives under baseDir.
func NewConfig(storeID, baseDir string) *Config {
	cfg := &Config{
		StoreID: storeID,
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Store: StoreConfig{
			Type: "sqlite",
			Path: filepath.Join(baseDir, "store", storeID+".db"),
		},
		Snapshot: SnapshotConfig{
			Vault: VaultConfig{
				Type:        "filesystem",
				Name:        "local",
				FSVaultRoot: filepath.Join(baseDir, "vault"),
			},
			Encryption: EncryptionConfig{
				Type:           "age",
				PublicKeyPath:  filepath.Join(baseDir, "keys", "mcard.pub"),
				PrivateKeyPath: filepath.Join(baseDir, "keys", "mcard.key"),
			},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero-valued settings with their defaults.
func (c *Config) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Store.Type == "" {
		c.Store.Type = "sqlite"
	}
	if c.Store.MaxConnections == 0 {
		c.Store.MaxConnections = DefaultMaxConnections
	}
	if c.Store.LockTimeoutSeconds == 0 {
		c.Store.LockTimeoutSeconds = DefaultLockTimeoutSeconds
	}
	if c.Hash.DefaultAlgorithm == "" {
		c.Hash.DefaultAlgorithm = string(hashing.Default)
	}
	if c.Hash.Region == "" {
		c.Hash.Region = DefaultRegion
	}
	if c.Ingest.MaxBytes == 0 {
		c.Ingest.MaxBytes = DefaultMaxIngestBytes
	}
	if c.Ingest.ReadTimeoutSeconds == 0 {
		c.Ingest.ReadTimeoutSeconds = DefaultReadTimeoutSeconds
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Snapshot.Compression == "" {
		c.Snapshot.Compression = DefaultCompression
	}
}

// ApplyEnv overrides settings from environment variables read through
// getenv. Unset variables leave the config unchanged.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvStorePath); v != "" {
		c.Store.Type = "sqlite"
		c.Store.Path = v
	}
	if v := getenv(EnvDefaultHashAlgorithm); v != "" {
		c.Hash.DefaultAlgorithm = v
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{EnvMaxConnections, &c.Store.MaxConnections},
		{EnvLockTimeoutSeconds, &c.Store.LockTimeoutSeconds},
		{EnvReadTimeoutSeconds, &c.Ingest.ReadTimeoutSeconds},
	}
	for _, e := range ints {
		v := getenv(e.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", e.name, err)
		}
		*e.dst = n
	}

	if v := getenv(EnvMaxIngestBytes); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvMaxIngestBytes, err)
		}
		c.Ingest.MaxBytes = n
	}

	if v := getenv(EnvS3AccessKeyID); v != "" {
		c.Snapshot.Vault.S3AccessKeyID = v
	}
	if v := getenv(EnvS3SecretAccessKey); v != "" {
		c.Snapshot.Vault.S3SecretAccessKey = v
	}
	return nil
}

// Validate checks that every setting is usable.
func (c *Config) Validate() error {
	switch c.Store.Type {
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for sqlite store")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown store type: %q", c.Store.Type)
	}
	if c.Store.MaxConnections < 1 {
		return fmt.Errorf("store.max_connections must be positive, got %d", c.Store.MaxConnections)
	}
	if c.Store.LockTimeoutSeconds < 1 {
		return fmt.Errorf("store.lock_timeout_seconds must be positive, got %d", c.Store.LockTimeoutSeconds)
	}
	if _, err := hashing.ParseAlgorithm(c.Hash.DefaultAlgorithm); err != nil {
		return fmt.Errorf("hash.default_algorithm: %w", err)
	}
	if c.Ingest.MaxBytes < 1 {
		return fmt.Errorf("ingest.max_bytes must be positive, got %d", c.Ingest.MaxBytes)
	}
	if c.Ingest.ReadTimeoutSeconds < 1 {
		return fmt.Errorf("ingest.read_timeout_seconds must be positive, got %d", c.Ingest.ReadTimeoutSeconds)
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
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

// ReadFromFile reads a Config from path and fills in defaults.
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
	cfg.ApplyDefaults()
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
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

// Init writes cfg to a new config file at path. It refuses to overwrite an
// existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
