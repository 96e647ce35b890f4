package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lexohub/lexsync/internal/models"
)

func resolution(s string) models.Resolution {
	return models.Resolution(strings.ToLower(strings.TrimSpace(s)))
}

// Loader handles configuration loading from file and environment.
type Loader struct {
	configPath string
	envPrefix  string
}

// NewLoader creates a config loader. An empty path searches the
// default locations.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
		envPrefix:  "LEXSYNC_",
	}
}

// Load reads configuration from defaults, then file, then environment.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFile(cfg, l.configPath); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	} else {
		for _, path := range l.defaultPaths() {
			if _, err := os.Stat(path); err == nil {
				l.configPath = path
				if err := l.loadFile(cfg, path); err != nil {
					return nil, fmt.Errorf("load config file %s: %w", path, err)
				}
				break
			}
		}
	}

	l.loadEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Path returns the configuration file actually used, if any.
func (l *Loader) Path() string { return l.configPath }

func (l *Loader) defaultPaths() []string {
	paths := []string{
		"lexsync.json",
		".lexsync.json",
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(homeDir, ".config", "lexsync", "config.json"),
			filepath.Join(homeDir, ".lexsync", "config.json"),
		)
	}

	return paths
}

func (l *Loader) loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	// Durations come in as strings in the JSON file ("30s", "5m").
	var raw struct {
		API struct {
			BaseURL    *string `json:"base_url"`
			Token      *string `json:"token"`
			Timeout    *string `json:"timeout"`
			MaxRetries *int    `json:"max_retries"`
			UserAgent  *string `json:"user_agent"`
		} `json:"api"`
		Storage struct {
			DataDir         *string `json:"data_dir"`
			DatabasePath    *string `json:"database_path"`
			MaxDatabaseSize *int64  `json:"max_database_size"`
			EncryptionKey   *string `json:"encryption_key"`
			KeySalt         *string `json:"key_salt"`
		} `json:"storage"`
		Sync struct {
			BatchSize        *int    `json:"batch_size"`
			BatchDelay       *string `json:"batch_delay"`
			MaxRetries       *int    `json:"max_retries"`
			ConflictPolicy   *string `json:"conflict_policy"`
			AutoSyncInterval *string `json:"auto_sync_interval"`
		} `json:"sync"`
		Billing struct {
			QuickOpinionMinFee     *int64 `json:"quick_opinion_min_fee"`
			QuickOpinionMaxFee     *int64 `json:"quick_opinion_max_fee"`
			QuickOpinionTurnaround *int   `json:"quick_opinion_turnaround_days"`
		} `json:"billing"`
		Log struct {
			Level  *string `json:"level"`
			Format *string `json:"format"`
			File   *string `json:"file"`
		} `json:"log"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse json: %w", err)
	}

	setString(&cfg.API.BaseURL, raw.API.BaseURL)
	setString(&cfg.API.Token, raw.API.Token)
	setString(&cfg.API.UserAgent, raw.API.UserAgent)
	setInt(&cfg.API.MaxRetries, raw.API.MaxRetries)
	if err := setDuration(&cfg.API.Timeout, raw.API.Timeout); err != nil {
		return fmt.Errorf("api.timeout: %w", err)
	}

	setString(&cfg.Storage.DataDir, raw.Storage.DataDir)
	setString(&cfg.Storage.DatabasePath, raw.Storage.DatabasePath)
	setString(&cfg.Storage.EncryptionKey, raw.Storage.EncryptionKey)
	setString(&cfg.Storage.KeySalt, raw.Storage.KeySalt)
	setInt64(&cfg.Storage.MaxDatabaseSize, raw.Storage.MaxDatabaseSize)

	setInt(&cfg.Sync.BatchSize, raw.Sync.BatchSize)
	setInt(&cfg.Sync.MaxRetries, raw.Sync.MaxRetries)
	if raw.Sync.ConflictPolicy != nil {
		cfg.Sync.ConflictPolicy = resolution(*raw.Sync.ConflictPolicy)
	}
	if err := setDuration(&cfg.Sync.BatchDelay, raw.Sync.BatchDelay); err != nil {
		return fmt.Errorf("sync.batch_delay: %w", err)
	}
	if err := setDuration(&cfg.Sync.AutoSyncInterval, raw.Sync.AutoSyncInterval); err != nil {
		return fmt.Errorf("sync.auto_sync_interval: %w", err)
	}

	setInt64(&cfg.Billing.QuickOpinionMinFee, raw.Billing.QuickOpinionMinFee)
	setInt64(&cfg.Billing.QuickOpinionMaxFee, raw.Billing.QuickOpinionMaxFee)
	setInt(&cfg.Billing.QuickOpinionTurnaround, raw.Billing.QuickOpinionTurnaround)

	setString(&cfg.Log.Level, raw.Log.Level)
	setString(&cfg.Log.Format, raw.Log.Format)
	setString(&cfg.Log.File, raw.Log.File)

	return nil
}

// loadEnv applies LEXSYNC_* environment overrides.
func (l *Loader) loadEnv(cfg *Config) {
	if v := os.Getenv(l.envPrefix + "API_BASE_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv(l.envPrefix + "API_TOKEN"); v != "" {
		cfg.API.Token = v
	}
	if v := os.Getenv(l.envPrefix + "API_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.API.Timeout = d
		}
	}
	if v := os.Getenv(l.envPrefix + "DB_PATH"); v != "" {
		cfg.Storage.DatabasePath = v
	}
	if v := os.Getenv(l.envPrefix + "ENCRYPTION_KEY"); v != "" {
		cfg.Storage.EncryptionKey = v
	}
	if v := os.Getenv(l.envPrefix + "BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sync.BatchSize = n
		}
	}
	if v := os.Getenv(l.envPrefix + "CONFLICT_POLICY"); v != "" {
		cfg.Sync.ConflictPolicy = resolution(v)
	}
	if v := os.Getenv(l.envPrefix + "LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv(l.envPrefix + "LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setInt64(dst *int64, src *int64) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *string) error {
	if src == nil {
		return nil
	}
	d, err := time.ParseDuration(*src)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
