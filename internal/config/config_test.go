package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testKey = "sk-1234567890abcdef1234567890abcdef"

func validConfig() Config {
	cfg := Default()
	cfg.AI.APIKey = testKey
	cfg.Paths.OutputDir = "output"
	return cfg
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "invalid API key - too short",
			mutate:  func(c *Config) { c.AI.APIKey = "short" },
			wantErr: true,
			errMsg:  "APIKey",
		},
		{
			name:    "mock provider needs no key",
			mutate:  func(c *Config) { c.AI.Provider = ProviderMock; c.AI.APIKey = "" },
			wantErr: false,
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.AI.Provider = "anthropic" },
			wantErr: true,
			errMsg:  "Provider",
		},
		{
			name:    "invalid base url",
			mutate:  func(c *Config) { c.AI.BaseURL = "not a url" },
			wantErr: true,
			errMsg:  "BaseURL",
		},
		{
			name:    "temperature out of range",
			mutate:  func(c *Config) { c.AI.Temperature = 3 },
			wantErr: true,
			errMsg:  "Temperature",
		},
		{
			name:    "zero chapter concurrency",
			mutate:  func(c *Config) { c.Limits.MaxConcurrentChapters = 0 },
			wantErr: true,
			errMsg:  "MaxConcurrentChapters",
		},
		{
			name:    "call timeout too short",
			mutate:  func(c *Config) { c.Limits.CallTimeout = 10 * time.Millisecond },
			wantErr: true,
			errMsg:  "CallTimeout",
		},
		{
			name:    "too many stage retries",
			mutate:  func(c *Config) { c.Limits.StageRetries = 11 },
			wantErr: true,
			errMsg:  "StageRetries",
		},
		{
			name:    "unknown session naming",
			mutate:  func(c *Config) { c.Paths.SessionNaming = "random" },
			wantErr: true,
			errMsg:  "SessionNaming",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr && tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("validate() error = %v, want error containing %q", err, tt.errMsg)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", testKey)
	t.Setenv("OPENAI_BASE_URL", "")
	t.Setenv("DEEPBOOK_MODEL", "")
	t.Setenv("DEEPBOOK_IMAGE_MODEL", "")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
ai:
  api_key: ${OPENAI_API_KEY}
  model: gpt-4o
  temperature: 0.2
paths:
  output_dir: ` + filepath.Join(dir, "out") + `
limits:
  max_concurrent_chapters: 3
  call_timeout: 45s
  stage_retries: 2
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.AI.APIKey != testKey {
		t.Errorf("APIKey not resolved from environment")
	}
	if cfg.AI.Model != "gpt-4o" {
		t.Errorf("Model = %q, want gpt-4o", cfg.AI.Model)
	}
	if cfg.AI.ImageModel != "dall-e-3" {
		t.Errorf("ImageModel = %q, want default dall-e-3", cfg.AI.ImageModel)
	}
	if cfg.Limits.MaxConcurrentChapters != 3 {
		t.Errorf("MaxConcurrentChapters = %d, want 3", cfg.Limits.MaxConcurrentChapters)
	}
	if cfg.Limits.CallTimeout != 45*time.Second {
		t.Errorf("CallTimeout = %v, want 45s", cfg.Limits.CallTimeout)
	}
	if cfg.Limits.StageRetries != 2 {
		t.Errorf("StageRetries = %d, want 2", cfg.Limits.StageRetries)
	}
	// Unset keys keep their defaults
	if cfg.Limits.MaxConcurrentImages != DefaultLimits().MaxConcurrentImages {
		t.Errorf("MaxConcurrentImages = %d, want default", cfg.Limits.MaxConcurrentImages)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", testKey)
	t.Setenv("OPENAI_BASE_URL", "http://localhost:8080/v1")
	t.Setenv("DEEPBOOK_MODEL", "gpt-4.1")
	t.Setenv("DEEPBOOK_IMAGE_MODEL", "dall-e-2")
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.AI.BaseURL != "http://localhost:8080/v1" {
		t.Errorf("BaseURL = %q", cfg.AI.BaseURL)
	}
	if cfg.AI.Model != "gpt-4.1" || cfg.AI.ImageModel != "dall-e-2" {
		t.Errorf("models = %q/%q", cfg.AI.Model, cfg.AI.ImageModel)
	}
	if !strings.HasSuffix(cfg.Paths.OutputDir, filepath.Join("deepbook", "output")) {
		t.Errorf("OutputDir = %q, want XDG default", cfg.Paths.OutputDir)
	}
}

func TestLoadMissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "APIKey") {
		t.Errorf("Load() error = %v, want APIKey validation error", err)
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("ai: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "parsing config file") {
		t.Errorf("Load() error = %v, want parse error", err)
	}
}

func TestSaveHidesKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", testKey)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := validConfig()

	if err := Save(&cfg, path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), testKey) {
		t.Error("saved config contains the API key")
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.AI.APIKey != testKey {
		t.Error("placeholder not resolved on load")
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("DEEPBOOK_CONFIG", "/tmp/custom.yaml")
	if got := DefaultPath(); got != "/tmp/custom.yaml" {
		t.Errorf("DefaultPath() = %q", got)
	}

	t.Setenv("DEEPBOOK_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	if got := DefaultPath(); got != filepath.Join("/xdg", "deepbook", "config.yaml") {
		t.Errorf("DefaultPath() = %q", got)
	}
}

func TestLoadOverridesBeforeValidation(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), func(c *Config) {
		c.AI.Provider = ProviderMock
		c.Paths.OutputDir = "~/books"
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AI.Provider != ProviderMock {
		t.Errorf("Provider = %q, want mock", cfg.AI.Provider)
	}
	if strings.HasPrefix(cfg.Paths.OutputDir, "~") {
		t.Errorf("OutputDir = %q, tilde not expanded", cfg.Paths.OutputDir)
	}
}
