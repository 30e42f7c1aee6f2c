package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

type Config struct {
	AI     AIConfig    `yaml:"ai" validate:"required"`
	Paths  PathsConfig `yaml:"paths" validate:"required"`
	Limits Limits      `yaml:"limits" validate:"required"`
}

type AIConfig struct {
	Provider    string  `yaml:"provider" validate:"required,oneof=openai mock"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model" validate:"required"`
	ImageModel  string  `yaml:"image_model" validate:"required"`
	BaseURL     string  `yaml:"base_url" validate:"omitempty,url"`
	Temperature float32 `yaml:"temperature" validate:"min=0,max=2"`
	MaxTokens   int     `yaml:"max_tokens" validate:"min=1,max=128000"`
}

type PathsConfig struct {
	OutputDir     string        `yaml:"output_dir" validate:"required"`
	SessionNaming string        `yaml:"session_naming" validate:"omitempty,oneof=descriptive timestamp uuid"`
	Prompts       PromptsConfig `yaml:"prompts"`
}

// PromptsConfig points at optional template overrides. Empty means the
// built-in template.
type PromptsConfig struct {
	Field   string `yaml:"field"`
	Chapter string `yaml:"chapter"`
	Image   string `yaml:"image"`
}

// Default returns a configuration that works with only OPENAI_API_KEY set.
func Default() Config {
	return Config{
		AI: AIConfig{
			Provider:    ProviderOpenAI,
			Model:       "gpt-4o-mini",
			ImageModel:  "dall-e-3",
			Temperature: 0.7,
			MaxTokens:   2048,
		},
		Paths: PathsConfig{
			OutputDir:     defaultOutputDir(),
			SessionNaming: "descriptive",
		},
		Limits: DefaultLimits(),
	}
}

// Load builds the configuration from defaults, the YAML file, .env, the
// environment and finally overrides, in that order of increasing precedence.
// path may be empty, in which case DEEPBOOK_CONFIG or the XDG location is
// used. A missing file is not an error.
func Load(path string, overrides ...func(*Config)) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()

	data, err := os.ReadFile(expandTilde(path))
	switch {
	case errors.Is(err, os.ErrNotExist):
		// defaults only
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnv()
	for _, override := range overrides {
		override(&cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyEnv() {
	// A saved config may carry the placeholder instead of the key.
	if c.AI.APIKey == "" || c.AI.APIKey == "${OPENAI_API_KEY}" {
		c.AI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.AI.BaseURL = v
	}
	if v := os.Getenv("DEEPBOOK_MODEL"); v != "" {
		c.AI.Model = v
	}
	if v := os.Getenv("DEEPBOOK_IMAGE_MODEL"); v != "" {
		c.AI.ImageModel = v
	}
}

// DefaultPath is where Load looks when no path is given.
func DefaultPath() string {
	// 1. Explicit config path via environment variable
	if path := os.Getenv("DEEPBOOK_CONFIG"); path != "" {
		return path
	}

	// 2. XDG_CONFIG_HOME (XDG Base Directory Specification)
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "deepbook", "config.yaml")
	}

	// 3. Default to ~/.config/deepbook/config.yaml (XDG fallback)
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "deepbook", "config.yaml")
}

func defaultOutputDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "deepbook", "output")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "deepbook", "output")
}

// expandTilde expands a tilde (~) at the beginning of a path to the user's home directory
func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

func (c *Config) validate() error {
	if c.Paths.OutputDir == "" {
		c.Paths.OutputDir = defaultOutputDir()
	}
	c.Paths.OutputDir = expandTilde(c.Paths.OutputDir)
	c.Paths.Prompts.Field = expandTilde(c.Paths.Prompts.Field)
	c.Paths.Prompts.Chapter = expandTilde(c.Paths.Prompts.Chapter)
	c.Paths.Prompts.Image = expandTilde(c.Paths.Prompts.Image)

	validate := validator.New()
	validate.RegisterStructValidation(validateAI, AIConfig{})

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	return nil
}

// validateAI requires an API key only when a real provider is selected.
func validateAI(sl validator.StructLevel) {
	ai := sl.Current().Interface().(AIConfig)
	if ai.Provider != ProviderOpenAI {
		return
	}
	if len(ai.APIKey) < 20 {
		sl.ReportError(ai.APIKey, "APIKey", "api_key", "apikey", "")
	}
}

// Save writes the configuration with the API key replaced by a placeholder
// that Load resolves from the environment.
func Save(cfg *Config, path string) error {
	cfgToSave := *cfg
	cfgToSave.AI.APIKey = "${OPENAI_API_KEY}"

	data, err := yaml.Marshal(&cfgToSave)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}
