package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config holds all storefront engine configuration.
type Config struct {
	// Core settings
	Name string `yaml:"name"`

	// Durable key-value storage
	Storage StorageConfig `yaml:"storage"`

	// Cross-context sync and reconciliation
	Sync SyncConfig `yaml:"sync"`

	// Export, restore and scheduled backups
	Backup BackupConfig `yaml:"backup"`

	// Text-generation collaborator
	Assistant AssistantConfig `yaml:"assistant"`

	// Credential bootstrap
	Auth AuthConfig `yaml:"auth"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// StorageConfig selects and tunes the storage backend.
type StorageConfig struct {
	Backend      string `yaml:"backend"`       // dir, bolt, sqlite, memory
	Path         string `yaml:"path"`          // directory (dir) or database file (bolt, sqlite)
	QuotaBytes   int64  `yaml:"quota_bytes"`   // 0 = unlimited
	SQLDriver    string `yaml:"sql_driver"`    // sqlite (pure Go) or sqlite3 (cgo)
	PollInterval string `yaml:"poll_interval"` // sqlite watch polling
}

// SyncConfig configures the notifier and the reconciliation loop.
type SyncConfig struct {
	ReconcileInterval string `yaml:"reconcile_interval"`
	ReconcileJitter   string `yaml:"reconcile_jitter"`
	NotifyFlash       string `yaml:"notify_flash"`    // "just synced" after a notification
	ReconcileFlash    string `yaml:"reconcile_flash"` // "just synced" after a reconcile hit
	WatchDebounce     string `yaml:"watch_debounce"`  // directory watcher settle time
}

// BackupConfig configures the backup serializer.
type BackupConfig struct {
	Dir            string `yaml:"dir"`
	FilePrefix     string `yaml:"file_prefix"`
	Schedule       string `yaml:"schedule"` // cron spec, empty disables scheduled backups
	Keep           int    `yaml:"keep"`
	DeviceInfo     string `yaml:"device_info"`
	MaxImportBytes int64  `yaml:"max_import_bytes"`
}

// AssistantConfig configures the support chat collaborator.
type AssistantConfig struct {
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Timeout  string `yaml:"timeout"`
	Language string `yaml:"language"` // reply language until the shopper picks one: bn or en
}

// AuthConfig bootstraps a privileged account without hardcoding credentials.
type AuthConfig struct {
	AdminPhone        string `yaml:"admin_phone"`
	AdminPasswordHash string `yaml:"admin_password_hash"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`  // debug, info, warn, error
	Format     string          `yaml:"format"` // console, json
	File       string          `yaml:"file"`
	MaxSizeMB  int             `yaml:"max_size_mb"`
	MaxBackups int             `yaml:"max_backups"`
	MaxAgeDays int             `yaml:"max_age_days"`
	Categories map[string]bool `yaml:"categories"`
}

// ValidBackends lists the storage backends Open understands.
var ValidBackends = []string{"dir", "bolt", "sqlite", "memory"}

// DefaultConfig returns the configuration a fresh install runs with.
func DefaultConfig() *Config {
	return &Config{
		Name: "storefront",

		Storage: StorageConfig{
			Backend:      "dir",
			Path:         "data/store",
			SQLDriver:    "sqlite",
			PollInterval: "500ms",
		},

		Sync: SyncConfig{
			ReconcileInterval: "2s",
			ReconcileJitter:   "250ms",
			NotifyFlash:       "800ms",
			ReconcileFlash:    "500ms",
			WatchDebounce:     "50ms",
		},

		Backup: BackupConfig{
			Dir:            "data/backups",
			FilePrefix:     "Bismillah_Supermarket",
			Keep:           7,
			MaxImportBytes: 32 << 20,
		},

		Assistant: AssistantConfig{
			Provider: "gemini",
			Model:    "gemini-2.5-flash",
			Timeout:  "30s",
			Language: "bn",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads the YAML file at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save writes the configuration as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

func (c *Config) applyEnvOverrides() {
	// API_KEY is the legacy name of the assistant credential.
	if key := os.Getenv("API_KEY"); key != "" {
		c.Assistant.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Assistant.APIKey = key
		c.Assistant.Provider = "gemini"
	}

	if backend := os.Getenv("STOREFRONT_BACKEND"); backend != "" {
		c.Storage.Backend = backend
	}
	if path := os.Getenv("STOREFRONT_STORAGE_PATH"); path != "" {
		c.Storage.Path = path
	}
	if level := os.Getenv("STOREFRONT_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// Validate checks values that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	validBackend := false
	for _, b := range ValidBackends {
		if c.Storage.Backend == b {
			validBackend = true
			break
		}
	}
	if !validBackend {
		return fmt.Errorf("invalid storage backend: %s (valid: %v)", c.Storage.Backend, ValidBackends)
	}
	if c.Storage.Backend != "memory" && c.Storage.Path == "" {
		return fmt.Errorf("storage path required for backend %s", c.Storage.Backend)
	}
	if c.Storage.QuotaBytes < 0 {
		return fmt.Errorf("storage quota must not be negative: %d", c.Storage.QuotaBytes)
	}
	switch c.Storage.SQLDriver {
	case "", "sqlite", "sqlite3":
	default:
		return fmt.Errorf("invalid sql driver: %s (valid: sqlite, sqlite3)", c.Storage.SQLDriver)
	}
	if c.Backup.Keep < 0 {
		return fmt.Errorf("backup keep must not be negative: %d", c.Backup.Keep)
	}
	if c.Backup.Schedule != "" {
		if _, err := CronParser.Parse(c.Backup.Schedule); err != nil {
			return fmt.Errorf("invalid backup schedule %q: %w", c.Backup.Schedule, err)
		}
	}
	switch c.Assistant.Language {
	case "", "bn", "en":
	default:
		return fmt.Errorf("invalid assistant language: %s (valid: bn, en)", c.Assistant.Language)
	}
	return nil
}

// CronParser accepts an optional seconds field plus descriptors such as @daily.
var CronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// GetReconcileInterval returns the reconciliation cadence.
func (c *Config) GetReconcileInterval() time.Duration {
	return parseDuration(c.Sync.ReconcileInterval, 2*time.Second)
}

// GetReconcileJitter returns the random extra delay added to each tick.
func (c *Config) GetReconcileJitter() time.Duration {
	return parseDuration(c.Sync.ReconcileJitter, 0)
}

// GetNotifyFlash returns how long the "just synced" signal stays up after a notification.
func (c *Config) GetNotifyFlash() time.Duration {
	return parseDuration(c.Sync.NotifyFlash, 800*time.Millisecond)
}

// GetReconcileFlash returns how long the "just synced" signal stays up after a reconcile hit.
func (c *Config) GetReconcileFlash() time.Duration {
	return parseDuration(c.Sync.ReconcileFlash, 500*time.Millisecond)
}

// GetWatchDebounce returns the directory watcher settle time.
func (c *Config) GetWatchDebounce() time.Duration {
	return parseDuration(c.Sync.WatchDebounce, 50*time.Millisecond)
}

// GetPollInterval returns the sqlite change polling interval.
func (c *Config) GetPollInterval() time.Duration {
	return parseDuration(c.Storage.PollInterval, 500*time.Millisecond)
}

// GetAssistantTimeout returns the per-request timeout of the assistant.
func (c *Config) GetAssistantTimeout() time.Duration {
	return parseDuration(c.Assistant.Timeout, 30*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}
