// Package config loads ragline configuration from file and environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/raglinehq/ragline/internal/chunk"
	"github.com/raglinehq/ragline/internal/embed"
	"github.com/raglinehq/ragline/internal/retrieve"
)

// Config holds all application configuration.
type Config struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	Store     StoreConfig     `mapstructure:"store"`
	Chunking  ChunkingConfig  `mapstructure:"chunking"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Server    ServerConfig    `mapstructure:"server"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Log       LogConfig       `mapstructure:"log"`
}

type LLMConfig struct {
	Provider   string        `mapstructure:"provider"`
	Model      string        `mapstructure:"model"`
	EmbedModel string        `mapstructure:"embed_model"`
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	BatchSize  int           `mapstructure:"batch_size"`
	// RateLimitRPM caps provider API calls per minute (0 = unlimited).
	RateLimitRPM int `mapstructure:"rate_limit_rpm"`
}

type StoreConfig struct {
	// Backend selects the vector store: postgres, qdrant or memory.
	Backend    string `mapstructure:"backend"`
	DSN        string `mapstructure:"dsn"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
	Dimension  int    `mapstructure:"dimension"`
	Metric     string `mapstructure:"metric"`
	// EnsureSchema creates tables/collections at startup when missing.
	EnsureSchema bool `mapstructure:"ensure_schema"`
}

type ChunkingConfig struct {
	Policy  string `mapstructure:"policy"`
	Size    int    `mapstructure:"size"`
	Overlap int    `mapstructure:"overlap"`
	Budget  int    `mapstructure:"budget"`
}

type RetrievalConfig struct {
	K int `mapstructure:"k"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type TracingConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	Environment  string  `mapstructure:"environment"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:   "openai",
			BatchSize:  embed.DefaultBatchSize,
			Timeout:    60 * time.Second,
			MaxRetries: 3,
		},
		Store: StoreConfig{
			Backend:    "postgres",
			Host:       "localhost",
			Port:       6334,
			Collection: "ragline",
			Dimension:  1536,
			Metric:     "cosine",
		},
		Chunking: ChunkingConfig{
			Policy:  string(chunk.PolicyFixed),
			Size:    chunk.DefaultSize,
			Overlap: chunk.DefaultOverlap,
			Budget:  chunk.DefaultBudget,
		},
		Retrieval: RetrievalConfig{K: retrieve.DefaultK},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Tracing: TracingConfig{SampleRate: 1.0, Environment: "development"},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// Validate checks the configuration for hard errors.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "postgres", "qdrant", "memory":
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Dimension < 1 {
		return fmt.Errorf("config: store.dimension must be positive, got %d", c.Store.Dimension)
	}
	if c.Retrieval.K < 1 {
		return fmt.Errorf("config: retrieval.k must be at least 1, got %d", c.Retrieval.K)
	}
	if _, err := chunk.New(chunk.Settings{
		Policy:  chunk.Policy(c.Chunking.Policy),
		Size:    c.Chunking.Size,
		Overlap: c.Chunking.Overlap,
		Budget:  c.Chunking.Budget,
	}); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Warnings reports soft issues worth surfacing at startup.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.LLM.Provider != "" && c.LLM.Provider != "ollama" && c.LLM.APIKey == "" {
		warnings = append(warnings, fmt.Sprintf("provider %q is configured but api_key is empty", c.LLM.Provider))
	}
	if c.LLM.BatchSize > 2048 {
		warnings = append(warnings, fmt.Sprintf("llm.batch_size %d is unusually large", c.LLM.BatchSize))
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		warnings = append(warnings, fmt.Sprintf("tracing.sample_rate %.2f is outside [0,1]", c.Tracing.SampleRate))
	}
	return warnings
}

// Load reads configuration from the file at path (optional when empty) and
// the RAGLINE_* environment, layered over Defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RAGLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := Defaults()
	v.SetDefault("llm.provider", defaults.LLM.Provider)
	v.SetDefault("llm.batch_size", defaults.LLM.BatchSize)
	v.SetDefault("llm.timeout", defaults.LLM.Timeout)
	v.SetDefault("llm.max_retries", defaults.LLM.MaxRetries)
	v.SetDefault("store.backend", defaults.Store.Backend)
	v.SetDefault("store.host", defaults.Store.Host)
	v.SetDefault("store.port", defaults.Store.Port)
	v.SetDefault("store.collection", defaults.Store.Collection)
	v.SetDefault("store.dimension", defaults.Store.Dimension)
	v.SetDefault("store.metric", defaults.Store.Metric)
	v.SetDefault("chunking.policy", defaults.Chunking.Policy)
	v.SetDefault("chunking.size", defaults.Chunking.Size)
	v.SetDefault("chunking.overlap", defaults.Chunking.Overlap)
	v.SetDefault("chunking.budget", defaults.Chunking.Budget)
	v.SetDefault("retrieval.k", defaults.Retrieval.K)
	v.SetDefault("server.addr", defaults.Server.Addr)
	v.SetDefault("server.read_timeout", defaults.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", defaults.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", defaults.Server.ShutdownTimeout)
	v.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	v.SetDefault("tracing.environment", defaults.Tracing.Environment)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
