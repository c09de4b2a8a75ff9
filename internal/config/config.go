package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models sowforge.yml.
type Config struct {
	Brand struct {
		Name           string `yaml:"name"`
		LogoURL        string `yaml:"logo_url"`
		PrimaryColor   string `yaml:"primary_color"`
		SecondaryColor string `yaml:"secondary_color"`
		Tone           string `yaml:"tone"`
	} `yaml:"brand"`
	Generation struct {
		Backend string `yaml:"backend"`
		Model   string `yaml:"model"`
		BaseURL string `yaml:"base_url"`
		// APIKey is usually supplied via SOWFORGE_OPENAI_API_KEY instead.
		APIKey string `yaml:"api_key"`
	} `yaml:"generation"`
	Defaults struct {
		TimelineWeeks int    `yaml:"timeline_weeks"`
		PricingModel  string `yaml:"pricing_model"`
	} `yaml:"defaults"`
}

var validTones = map[string]bool{"": true, "formal": true, "consultative": true, "friendly": true}

var validModels = map[string]bool{
	"":                 true,
	"TimeAndMaterials": true,
	"Fixed":            true,
	"Hybrid":           true,
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if !validTones[c.Brand.Tone] {
		return fmt.Errorf("config.brand.tone must be formal, consultative or friendly")
	}
	switch c.Generation.Backend {
	case "", "none", "openai":
	default:
		return fmt.Errorf("config.generation.backend must be 'none' or 'openai'")
	}
	if c.Generation.Backend == "openai" && c.Generation.APIKey == "" && os.Getenv("SOWFORGE_OPENAI_API_KEY") == "" && os.Getenv("OPENAI_API_KEY") == "" {
		return fmt.Errorf("config.generation.backend is 'openai' but no api key is configured")
	}
	if c.Defaults.TimelineWeeks < 0 {
		return fmt.Errorf("config.defaults.timeline_weeks must be positive")
	}
	if !validModels[c.Defaults.PricingModel] {
		return fmt.Errorf("config.defaults.pricing_model must be TimeAndMaterials, Fixed or Hybrid")
	}
	return nil
}

// APIKey resolves the backend key from, in order, the environment and the
// config file.
func (c *Config) APIKey() string {
	if k := os.Getenv("SOWFORGE_OPENAI_API_KEY"); k != "" {
		return k
	}
	if k := os.Getenv("OPENAI_API_KEY"); k != "" {
		return k
	}
	return c.Generation.APIKey
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "sowforge.yml")
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; write one with sf config show --default > %s", path, path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// GenerateDefault returns the default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `brand:
  name: ""
  tone: consultative

generation:
  # none uses the deterministic generator; openai calls a chat backend and
  # falls back to the deterministic generator on failure.
  backend: none
  model: gpt-4-turbo-preview
  base_url: ""

defaults:
  timeline_weeks: 12
  pricing_model: TimeAndMaterials
`
