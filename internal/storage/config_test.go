package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.AI.BaseURL != "http://localhost:11434" {
		t.Errorf("default base URL: got %s", cfg.AI.BaseURL)
	}
	if cfg.Temperatures.Analysis != 0.3 || cfg.Temperatures.Suggestion != 0.7 {
		t.Errorf("default temperatures: got %v / %v", cfg.Temperatures.Analysis, cfg.Temperatures.Suggestion)
	}
	if cfg.Timeline.DefaultDays != 30 {
		t.Errorf("default timeline days: got %d", cfg.Timeline.DefaultDays)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Database.Path != "./veille.db" {
		t.Errorf("expected defaults, got db path %s", cfg.Database.Path)
	}
}

func TestLoadConfigYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "database:\n  path: /tmp/x.db\nai:\n  model: mistral\ntimeline:\n  default_days: 7\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Database.Path != "/tmp/x.db" || cfg.AI.Model != "mistral" || cfg.Timeline.DefaultDays != 7 {
		t.Errorf("yaml values not applied: %+v", cfg)
	}
	// Unset keys keep their defaults
	if cfg.AI.BaseURL != "http://localhost:11434" {
		t.Errorf("base URL default lost: %s", cfg.AI.BaseURL)
	}
}

func TestLoadConfigTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := "[ai]\nmodel = \"qwen\"\n\n[fetch]\nallow_private_networks = true\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.AI.Model != "qwen" || !cfg.Fetch.AllowPrivateNetworks {
		t.Errorf("toml values not applied: model=%s private=%v", cfg.AI.Model, cfg.Fetch.AllowPrivateNetworks)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("database: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvAPIKey: "secret",
		EnvModel:  "gemma3:4b",
	}
	cfg := DefaultConfig()
	cfg.ApplyEnv(func(k string) string { return env[k] })

	if cfg.AI.APIKey != "secret" || cfg.AI.Model != "gemma3:4b" {
		t.Errorf("env overrides not applied: %+v", cfg.AI)
	}
	if cfg.Database.Path != "./veille.db" {
		t.Errorf("unset env var changed db path: %s", cfg.Database.Path)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	for _, name := range []string{"config.yaml", "config.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			cfg := DefaultConfig()
			cfg.AI.Model = "phi3"
			data, err := cfg.Marshal(path)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			if err := os.WriteFile(path, data, 0644); err != nil {
				t.Fatal(err)
			}
			loaded, err := LoadConfig(path)
			if err != nil {
				t.Fatalf("LoadConfig: %v", err)
			}
			if loaded.AI.Model != "phi3" {
				t.Errorf("model = %s, want phi3", loaded.AI.Model)
			}
		})
	}
}
