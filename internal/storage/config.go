package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file configuration.
const (
	EnvDatabasePath = "VEILLE_DB"
	EnvOllamaURL    = "VEILLE_OLLAMA_URL"
	EnvAPIKey       = "VEILLE_API_KEY"
	EnvModel        = "VEILLE_MODEL"
	EnvLogLevel     = "VEILLE_LOG_LEVEL"
)

type Config struct {
	Database struct {
		Path string `yaml:"path" toml:"path"`
	} `yaml:"database" toml:"database"`

	AI struct {
		BaseURL        string `yaml:"base_url" toml:"base_url"`
		Model          string `yaml:"model" toml:"model"`
		APIKey         string `yaml:"api_key,omitempty" toml:"api_key,omitempty"`
		TimeoutSeconds int    `yaml:"timeout_seconds" toml:"timeout_seconds"`
		MaxContentLen  int    `yaml:"max_content_length" toml:"max_content_length"`
	} `yaml:"ai" toml:"ai"`

	Prompts struct {
		Analysis   string `yaml:"analysis,omitempty" toml:"analysis,omitempty"`
		Suggestion string `yaml:"suggestion,omitempty" toml:"suggestion,omitempty"`
	} `yaml:"prompts,omitempty" toml:"prompts,omitempty"`

	Temperatures struct {
		Analysis   float64 `yaml:"analysis" toml:"analysis"`
		Suggestion float64 `yaml:"suggestion" toml:"suggestion"`
	} `yaml:"temperatures,omitempty" toml:"temperatures,omitempty"`

	Fetch struct {
		UserAgent            string  `yaml:"user_agent" toml:"user_agent"`
		RequestsPerSecond    float64 `yaml:"requests_per_second" toml:"requests_per_second"`
		Burst                int     `yaml:"burst" toml:"burst"`
		TimeoutSeconds       int     `yaml:"timeout_seconds" toml:"timeout_seconds"`
		MaxArticlesPerSource int     `yaml:"max_articles_per_source" toml:"max_articles_per_source"`
		AllowPrivateNetworks bool    `yaml:"allow_private_networks" toml:"allow_private_networks"`
	} `yaml:"fetch" toml:"fetch"`

	Timeline struct {
		DefaultDays int `yaml:"default_days" toml:"default_days"`
	} `yaml:"timeline" toml:"timeline"`

	Logging struct {
		Level  string `yaml:"level" toml:"level"`
		Format string `yaml:"format" toml:"format"`
	} `yaml:"logging" toml:"logging"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Database.Path = "./veille.db"
	cfg.AI.BaseURL = "http://localhost:11434"
	cfg.AI.Model = "llama3"
	cfg.AI.TimeoutSeconds = 120
	cfg.AI.MaxContentLen = 4000
	cfg.Temperatures.Analysis = 0.3
	cfg.Temperatures.Suggestion = 0.7
	cfg.Fetch.UserAgent = "Veille/1.0"
	cfg.Fetch.RequestsPerSecond = 2
	cfg.Fetch.Burst = 1
	cfg.Fetch.TimeoutSeconds = 30
	cfg.Fetch.MaxArticlesPerSource = 20
	cfg.Timeline.DefaultDays = 30
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"
	return cfg
}

// LoadConfig reads path (YAML, or TOML when the extension is .toml) over the
// defaults and applies environment overrides. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := cfg.decode(path, data); err != nil {
				return nil, err
			}
		}
	}

	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}

func (c *Config) decode(path string, data []byte) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), c); err != nil {
			return fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from the environment lookup function.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvDatabasePath); v != "" {
		c.Database.Path = v
	}
	if v := getenv(EnvOllamaURL); v != "" {
		c.AI.BaseURL = v
	}
	if v := getenv(EnvAPIKey); v != "" {
		c.AI.APIKey = v
	}
	if v := getenv(EnvModel); v != "" {
		c.AI.Model = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
}

// Marshal encodes the config in the format implied by path's extension.
func (c *Config) Marshal(path string) ([]byte, error) {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		var b strings.Builder
		if err := toml.NewEncoder(&b).Encode(c); err != nil {
			return nil, err
		}
		return []byte(b.String()), nil
	}
	return yaml.Marshal(c)
}

// String renders a short human description, hiding the API key.
func (c *Config) String() string {
	key := "unset"
	if c.AI.APIKey != "" {
		key = "set (" + strconv.Itoa(len(c.AI.APIKey)) + " chars)"
	}
	return fmt.Sprintf("db=%s ai=%s model=%s api_key=%s", c.Database.Path, c.AI.BaseURL, c.AI.Model, key)
}
