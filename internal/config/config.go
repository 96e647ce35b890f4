package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/lexohub/lexsync/internal/models"
)

// Config holds all application configuration.
type Config struct {
	API     APIConfig     `json:"api"`
	Storage StorageConfig `json:"storage"`
	Sync    SyncConfig    `json:"sync"`
	Billing BillingConfig `json:"billing"`
	Log     LogConfig     `json:"log"`
}

// APIConfig for remote sync API communication.
type APIConfig struct {
	BaseURL    string        `json:"base_url"`
	Token      string        `json:"token,omitempty"`
	Timeout    time.Duration `json:"timeout"`
	MaxRetries int           `json:"max_retries"`
	UserAgent  string        `json:"user_agent"`
}

// StorageConfig for the encrypted local store.
type StorageConfig struct {
	DataDir         string `json:"data_dir"`
	DatabasePath    string `json:"database_path"`
	MaxDatabaseSize int64  `json:"max_database_size"` // bytes; 0 disables quota checks

	// EncryptionKey is the passphrase the store key is derived from.
	// Empty means records are stored unencrypted.
	EncryptionKey string `json:"encryption_key,omitempty"`

	// KeySalt switches key derivation from a plain SHA-256 hash to
	// PBKDF2 with this salt.
	KeySalt string `json:"key_salt,omitempty"`
}

// SyncConfig for sync engine behavior.
type SyncConfig struct {
	BatchSize        int               `json:"batch_size"`
	BatchDelay       time.Duration     `json:"batch_delay"`
	MaxRetries       int               `json:"max_retries"`
	ConflictPolicy   models.Resolution `json:"conflict_policy"` // local, remote, manual
	AutoSyncInterval time.Duration     `json:"auto_sync_interval"`
}

// BillingConfig for the strategy layer.
type BillingConfig struct {
	QuickOpinionMinFee     int64 `json:"quick_opinion_min_fee"`
	QuickOpinionMaxFee     int64 `json:"quick_opinion_max_fee"`
	QuickOpinionTurnaround int   `json:"quick_opinion_turnaround_days"`
}

// LogConfig for logging behavior.
type LogConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // text, json
	File   string `json:"file"`   // empty = stdout
}

// DefaultConfig returns config with sensible defaults.
func DefaultConfig() *Config {
	dataDir := ".lexsync"

	return &Config{
		API: APIConfig{
			BaseURL:    "https://api.lexohub.co.za/v1",
			Timeout:    30 * time.Second,
			MaxRetries: 3,
			UserAgent:  "lexsync/1.0",
		},
		Storage: StorageConfig{
			DataDir:         dataDir,
			DatabasePath:    filepath.Join(dataDir, "offline.db"),
			MaxDatabaseSize: 256 * 1024 * 1024,
		},
		Sync: SyncConfig{
			BatchSize:        10,
			BatchDelay:       100 * time.Millisecond,
			MaxRetries:       3,
			ConflictPolicy:   models.ResolveManual,
			AutoSyncInterval: 5 * time.Minute,
		},
		Billing: BillingConfig{
			QuickOpinionMinFee:     2500,
			QuickOpinionMaxFee:     10000,
			QuickOpinionTurnaround: 3,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be positive")
	}
	if c.API.MaxRetries < 0 {
		return errors.New("api.max_retries cannot be negative")
	}
	if c.Storage.DatabasePath == "" {
		return errors.New("storage.database_path is required")
	}
	if c.Storage.MaxDatabaseSize < 0 {
		return errors.New("storage.max_database_size cannot be negative")
	}
	if c.Sync.BatchSize <= 0 {
		return errors.New("sync.batch_size must be positive")
	}
	if c.Sync.BatchDelay < 0 {
		return errors.New("sync.batch_delay cannot be negative")
	}
	switch c.Sync.ConflictPolicy {
	case models.ResolveLocal, models.ResolveRemote, models.ResolveManual:
	default:
		return fmt.Errorf("sync.conflict_policy must be local, remote or manual, got %q",
			c.Sync.ConflictPolicy)
	}
	if c.Billing.QuickOpinionMinFee > c.Billing.QuickOpinionMaxFee {
		return errors.New("billing.quick_opinion_min_fee exceeds max fee")
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}
