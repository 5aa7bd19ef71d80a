package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config invalid: %v", err)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8484 {
		t.Errorf("Port = %d, want default 8484", cfg.Server.Port)
	}
}

func TestLoad_FileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
port = 9999

[embedding]
model = "custom-embed"
max_retries = 7
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Embedding.Model != "custom-embed" {
		t.Errorf("Embedding.Model = %q", cfg.Embedding.Model)
	}
	if cfg.Embedding.MaxRetries != 7 {
		t.Errorf("Embedding.MaxRetries = %d, want 7", cfg.Embedding.MaxRetries)
	}
	// Untouched sections keep their defaults.
	if cfg.Ollama.BaseURL != "http://localhost:11434" {
		t.Errorf("Ollama.BaseURL = %q, want default", cfg.Ollama.BaseURL)
	}
	if cfg.Enrichment.MaxRetries != 3 {
		t.Errorf("Enrichment.MaxRetries = %d, want default 3", cfg.Enrichment.MaxRetries)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[server]\napi_key = \"from-file\"\n"), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	t.Setenv("ZETTEL_API_KEY", "from-env")
	t.Setenv("ZETTEL_PORT", "7777")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.APIKey != "from-env" {
		t.Errorf("APIKey = %q, want the environment override", cfg.Server.APIKey)
	}
	if cfg.Server.Port != 7777 {
		t.Errorf("Port = %d, want 7777", cfg.Server.Port)
	}
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero max retries", func(c *Config) { c.Embedding.MaxRetries = 0 }},
		{"negative poll interval", func(c *Config) { c.Generation.PollIntervalSeconds = -1 }},
		{"zero grace", func(c *Config) { c.Enrichment.GraceSeconds = 0 }},
		{"zero batch", func(c *Config) { c.Embedding.Batch = 0 }},
		{"zero queue capacity", func(c *Config) { c.Enrichment.QueueCapacity = 0 }},
		{"zero item timeout", func(c *Config) { c.Generation.ItemTimeoutSeconds = 0 }},
		{"negative item timeout", func(c *Config) { c.Embedding.ItemTimeoutSeconds = -5 }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"empty data dir", func(c *Config) { c.Database.DataDir = "" }},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
		{"bad provider", func(c *Config) { c.Generation.Provider = "anthropic" }},
		{"openrouter without key", func(c *Config) {
			c.Generation.Provider = "openrouter"
			c.Generation.OpenRouterAPIKey = ""
		}},
		{"empty embedding model", func(c *Config) { c.Embedding.Model = "" }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := Default()
			c.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate accepted an invalid config")
			}
		})
	}
}

func TestPipelineDurations(t *testing.T) {
	p := PipelineConfig{PollIntervalSeconds: 30, GraceSeconds: 300, ItemTimeoutSeconds: 120}
	if p.PollInterval() != 30*time.Second {
		t.Errorf("PollInterval = %v", p.PollInterval())
	}
	if p.Grace() != 5*time.Minute {
		t.Errorf("Grace = %v", p.Grace())
	}
	if p.ItemTimeout() != 2*time.Minute {
		t.Errorf("ItemTimeout = %v", p.ItemTimeout())
	}
}

func TestWriteSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := WriteSample(path); err != nil {
		t.Fatalf("WriteSample: %v", err)
	}

	// The sample must load cleanly.
	if _, err := Load(path); err != nil {
		t.Errorf("sample config does not load: %v", err)
	}

	if err := WriteSample(path); err == nil {
		t.Error("WriteSample overwrote an existing file")
	}
}
