package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig []byte

// Config is the full application configuration, loaded from a TOML file with
// environment-variable overrides for the values that carry secrets or differ
// per machine.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Database   DatabaseConfig   `toml:"database"`
	Log        LogConfig        `toml:"log"`
	Ollama     OllamaConfig     `toml:"ollama"`
	Embedding  EmbeddingConfig  `toml:"embedding"`
	Enrichment EnrichmentConfig `toml:"enrichment"`
	Generation GenerationConfig `toml:"generation"`
}

type ServerConfig struct {
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	APIKey  string `toml:"api_key"`
	PIDFile string `toml:"pid_file"`
}

type DatabaseConfig struct {
	DataDir string `toml:"data_dir"`
}

type LogConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // text or json
}

type OllamaConfig struct {
	BaseURL            string `toml:"base_url"`
	ChatTimeoutSeconds int    `toml:"chat_timeout_seconds"`
}

// PipelineConfig is the shared tuning block for one background pipeline.
type PipelineConfig struct {
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
	GraceSeconds        int `toml:"grace_seconds"`
	Batch               int `toml:"batch"`
	MaxRetries          int `toml:"max_retries"`
	QueueCapacity       int `toml:"queue_capacity"`
	ItemTimeoutSeconds  int `toml:"item_timeout_seconds"`
}

type EmbeddingConfig struct {
	Model    string `toml:"model"`
	MaxChars int    `toml:"max_chars"`
	PipelineConfig
}

type EnrichmentConfig struct {
	FetchTimeoutSeconds int   `toml:"fetch_timeout_seconds"`
	MaxBodyBytes        int64 `toml:"max_body_bytes"`
	PipelineConfig
}

type GenerationConfig struct {
	Provider         string `toml:"provider"` // ollama or openrouter
	Model            string `toml:"model"`
	MaxTokens        int    `toml:"max_tokens"`
	OpenRouterAPIKey string `toml:"openrouter_api_key"`
	PipelineConfig
}

// Default returns the built-in configuration, suitable for a local install.
func Default() Config {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".zettel")
	pipeline := PipelineConfig{
		PollIntervalSeconds: 30,
		GraceSeconds:        300,
		Batch:               50,
		MaxRetries:          3,
		QueueCapacity:       256,
		ItemTimeoutSeconds:  120,
	}
	return Config{
		Server: ServerConfig{
			Host:    "127.0.0.1",
			Port:    8484,
			PIDFile: filepath.Join(dataDir, "zettel.pid"),
		},
		Database: DatabaseConfig{DataDir: dataDir},
		Log:      LogConfig{Level: "info", Format: "text"},
		Ollama:   OllamaConfig{BaseURL: "http://localhost:11434", ChatTimeoutSeconds: 300},
		Embedding: EmbeddingConfig{
			Model:          "nomic-embed-text",
			MaxChars:       4000,
			PipelineConfig: pipeline,
		},
		Enrichment: EnrichmentConfig{
			FetchTimeoutSeconds: 30,
			MaxBodyBytes:        2 << 20,
			PipelineConfig:      pipeline,
		},
		Generation: GenerationConfig{
			Provider:       "ollama",
			Model:          "llama3.1",
			MaxTokens:      2048,
			PipelineConfig: pipeline,
		},
	}
}

// Load reads configuration from path, overlaying the defaults, then applies
// environment overrides and validates. A missing file is not an error; the
// defaults plus environment are used.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err == nil {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultPath returns the conventional config file location.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".zettel", "config.toml")
}

// WriteSample writes the embedded sample configuration to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return os.WriteFile(path, sampleConfig, 0o600)
}

func (c *Config) applyEnv() {
	if v := os.Getenv("ZETTEL_API_KEY"); v != "" {
		c.Server.APIKey = v
	}
	if v := os.Getenv("ZETTEL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("ZETTEL_DATA_DIR"); v != "" {
		c.Database.DataDir = v
	}
	if v := os.Getenv("ZETTEL_OLLAMA_URL"); v != "" {
		c.Ollama.BaseURL = v
	}
	if v := os.Getenv("ZETTEL_OPENROUTER_API_KEY"); v != "" {
		c.Generation.OpenRouterAPIKey = v
	}
	if v := os.Getenv("ZETTEL_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate rejects configurations that would misbehave at runtime rather
// than failing loudly at startup.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Database.DataDir == "" {
		return fmt.Errorf("database.data_dir is required")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q is not one of text, json", c.Log.Format)
	}
	if c.Ollama.BaseURL == "" {
		return fmt.Errorf("ollama.base_url is required")
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	switch c.Generation.Provider {
	case "ollama", "openrouter":
	default:
		return fmt.Errorf("generation.provider %q is not one of ollama, openrouter", c.Generation.Provider)
	}
	if c.Generation.Provider == "openrouter" && c.Generation.OpenRouterAPIKey == "" {
		return fmt.Errorf("generation.openrouter_api_key is required when provider is openrouter")
	}

	for _, p := range []struct {
		name string
		cfg  PipelineConfig
	}{
		{"embedding", c.Embedding.PipelineConfig},
		{"enrichment", c.Enrichment.PipelineConfig},
		{"generation", c.Generation.PipelineConfig},
	} {
		if err := p.cfg.validate(); err != nil {
			return fmt.Errorf("%s: %w", p.name, err)
		}
	}
	return nil
}

func (p PipelineConfig) validate() error {
	if p.MaxRetries < 1 {
		// A ceiling of zero would mark every failure terminal on first error.
		return fmt.Errorf("max_retries must be at least 1, got %d", p.MaxRetries)
	}
	if p.PollIntervalSeconds < 1 {
		return fmt.Errorf("poll_interval_seconds must be positive, got %d", p.PollIntervalSeconds)
	}
	if p.GraceSeconds < 1 {
		return fmt.Errorf("grace_seconds must be positive, got %d", p.GraceSeconds)
	}
	if p.Batch < 1 {
		return fmt.Errorf("batch must be positive, got %d", p.Batch)
	}
	if p.QueueCapacity < 1 {
		return fmt.Errorf("queue_capacity must be positive, got %d", p.QueueCapacity)
	}
	if p.ItemTimeoutSeconds < 1 {
		// Without a per-item bound a hung external call blocks the worker
		// until the grace window expires and the item double-runs.
		return fmt.Errorf("item_timeout_seconds must be positive, got %d", p.ItemTimeoutSeconds)
	}
	return nil
}

// PollInterval returns the poll period as a duration.
func (p PipelineConfig) PollInterval() time.Duration {
	return time.Duration(p.PollIntervalSeconds) * time.Second
}

// Grace returns the stuck-item grace window as a duration.
func (p PipelineConfig) Grace() time.Duration {
	return time.Duration(p.GraceSeconds) * time.Second
}

// ItemTimeout returns the per-item execution bound as a duration.
func (p PipelineConfig) ItemTimeout() time.Duration {
	return time.Duration(p.ItemTimeoutSeconds) * time.Second
}
