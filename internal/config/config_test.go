package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Storage.Backend != "dir" {
		t.Errorf("expected Backend=dir, got %s", cfg.Storage.Backend)
	}
	if cfg.GetReconcileInterval() != 2*time.Second {
		t.Errorf("expected 2s reconcile interval, got %v", cfg.GetReconcileInterval())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	t.Setenv("API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("STOREFRONT_BACKEND", "")
	t.Setenv("STOREFRONT_STORAGE_PATH", "")

	path := filepath.Join(t.TempDir(), "nested", "storefront.yaml")

	cfg := DefaultConfig()
	cfg.Storage.Backend = "bolt"
	cfg.Storage.Path = "data/store.db"
	cfg.Backup.Schedule = "@daily"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Storage.Backend != "bolt" {
		t.Errorf("expected Backend=bolt, got %s", loaded.Storage.Backend)
	}
	if loaded.Backup.Schedule != "@daily" {
		t.Errorf("expected Schedule=@daily, got %s", loaded.Backup.Schedule)
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("STOREFRONT_BACKEND", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Storage.Backend != "dir" {
		t.Errorf("expected defaults, got backend %s", cfg.Storage.Backend)
	}
}

func TestLoad_RejectsBrokenYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("storage: [unterminated"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("API_KEY", "build-key")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("STOREFRONT_BACKEND", "sqlite")
	t.Setenv("STOREFRONT_STORAGE_PATH", "/tmp/shop.db")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	if cfg.Assistant.APIKey != "build-key" {
		t.Errorf("expected APIKey=build-key, got %s", cfg.Assistant.APIKey)
	}
	if cfg.Storage.Backend != "sqlite" || cfg.Storage.Path != "/tmp/shop.db" {
		t.Errorf("storage overrides not applied: %+v", cfg.Storage)
	}

	t.Setenv("GEMINI_API_KEY", "gemini-key")
	cfg.applyEnvOverrides()
	if cfg.Assistant.APIKey != "gemini-key" {
		t.Errorf("GEMINI_API_KEY should win, got %s", cfg.Assistant.APIKey)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Storage.Backend = "redis" }},
		{"missing path", func(c *Config) { c.Storage.Path = "" }},
		{"negative quota", func(c *Config) { c.Storage.QuotaBytes = -1 }},
		{"bad driver", func(c *Config) { c.Storage.SQLDriver = "postgres" }},
		{"bad schedule", func(c *Config) { c.Backup.Schedule = "every tuesday" }},
		{"bad language", func(c *Config) { c.Assistant.Language = "fr" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	cfg := DefaultConfig()
	cfg.Storage.Backend = "memory"
	cfg.Storage.Path = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("memory backend needs no path: %v", err)
	}
}

func TestConfig_DurationFallbacks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sync.ReconcileInterval = "soon"
	cfg.Sync.NotifyFlash = "-1s"
	if got := cfg.GetReconcileInterval(); got != 2*time.Second {
		t.Errorf("expected fallback 2s, got %v", got)
	}
	if got := cfg.GetNotifyFlash(); got != 800*time.Millisecond {
		t.Errorf("expected fallback 800ms, got %v", got)
	}
	if got := cfg.GetReconcileJitter(); got != 250*time.Millisecond {
		t.Errorf("expected 250ms jitter, got %v", got)
	}
}
