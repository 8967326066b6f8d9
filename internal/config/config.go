// Package config loads service settings from an optional YAML file, a .env
// file and the environment, in that order of precedence (last wins).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM        LLMConfig        `yaml:"llm"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Database   DatabaseConfig   `yaml:"database"`
	Cache      CacheConfig      `yaml:"cache"`
	HTTP       HTTPConfig       `yaml:"http"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Generation GenerationConfig `yaml:"generation"`
	LogLevel   string           `yaml:"log_level"`
}

type LLMConfig struct {
	APIKey string `yaml:"api_key"`
	// BaseURL points the client at any OpenAI-compatible endpoint.
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
	// MinInterval is the minimum spacing between model calls. Zero disables it.
	MinInterval  time.Duration `yaml:"min_interval"`
	StrictSchema bool          `yaml:"strict_schema"`
}

type EmbeddingConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Model     string        `yaml:"model"`
	Dimension int           `yaml:"dimension"`
	Timeout   time.Duration `yaml:"timeout"`
	BatchSize int           `yaml:"batch_size"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type CacheConfig struct {
	// RedisURL enables the completion cache when set.
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
}

type HTTPConfig struct {
	Addr           string        `yaml:"addr"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type RetrievalConfig struct {
	MaxTopK int `yaml:"max_top_k"`
	// TopK is how many workouts the generator retrieves as context.
	TopK int `yaml:"top_k"`
}

type GenerationConfig struct {
	// Mode is "whole" or "week_by_week".
	Mode string `yaml:"mode"`
	// DaysPerWeek is "calendar" (7 days) or "sessions" (sessions_per_week).
	DaysPerWeek string `yaml:"days_per_week"`
}

func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Model:        "gpt-4o-mini",
			Temperature:  0.7,
			Timeout:      2 * time.Minute,
			MinInterval:  0,
			StrictSchema: false,
		},
		Embedding: EmbeddingConfig{
			Model:     "text-embedding-3-small",
			Dimension: 1536,
			Timeout:   30 * time.Second,
			BatchSize: 64,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "workouts.db",
		},
		Cache: CacheConfig{
			TTL: 24 * time.Hour,
		},
		HTTP: HTTPConfig{
			Addr:           ":8000",
			RequestTimeout: 5 * time.Minute,
		},
		Retrieval: RetrievalConfig{
			MaxTopK: 50,
			TopK:    5,
		},
		Generation: GenerationConfig{
			Mode:        "whole",
			DaysPerWeek: "calendar",
		},
		LogLevel: "info",
	}
}

// Load builds the configuration. path may be empty.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	e := envReader{lookup: lookup}
	e.str("OPENAI_API_KEY", &c.LLM.APIKey)
	e.str("OPENAI_BASE_URL", &c.LLM.BaseURL)
	e.str("LLM_MODEL", &c.LLM.Model)
	e.float("LLM_TEMPERATURE", &c.LLM.Temperature)
	e.duration("LLM_TIMEOUT", &c.LLM.Timeout)
	e.duration("LLM_MIN_INTERVAL", &c.LLM.MinInterval)
	e.boolean("LLM_STRICT_SCHEMA", &c.LLM.StrictSchema)
	e.str("EMBEDDING_MODEL", &c.Embedding.Model)
	e.str("EMBEDDING_BASE_URL", &c.Embedding.BaseURL)
	e.integer("EMBEDDING_DIMENSION", &c.Embedding.Dimension)
	e.duration("EMBEDDING_TIMEOUT", &c.Embedding.Timeout)
	e.integer("EMBEDDING_BATCH_SIZE", &c.Embedding.BatchSize)
	e.str("DB_DRIVER", &c.Database.Driver)
	e.str("DB_DSN", &c.Database.DSN)
	e.str("REDIS_URL", &c.Cache.RedisURL)
	e.duration("CACHE_TTL", &c.Cache.TTL)
	e.str("HTTP_ADDR", &c.HTTP.Addr)
	e.duration("REQUEST_TIMEOUT", &c.HTTP.RequestTimeout)
	e.integer("MAX_TOP_K", &c.Retrieval.MaxTopK)
	e.integer("RETRIEVAL_TOP_K", &c.Retrieval.TopK)
	e.str("GENERATION_MODE", &c.Generation.Mode)
	e.str("DAYS_PER_WEEK", &c.Generation.DaysPerWeek)
	e.str("LOG_LEVEL", &c.LogLevel)
	return e.err
}

// envReader stops at the first malformed value.
type envReader struct {
	lookup lookupFunc
	err    error
}

func (e *envReader) get(key string) (string, bool) {
	if e.err != nil {
		return "", false
	}
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) integer(key string, dst *int) {
	if v, ok := e.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.err = fmt.Errorf("invalid %s %q: %w", key, v, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) float(key string, dst *float64) {
	if v, ok := e.get(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.err = fmt.Errorf("invalid %s %q: %w", key, v, err)
			return
		}
		*dst = f
	}
}

func (e *envReader) duration(key string, dst *time.Duration) {
	if v, ok := e.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.err = fmt.Errorf("invalid %s %q: %w", key, v, err)
			return
		}
		*dst = d
	}
}

func (e *envReader) boolean(key string, dst *bool) {
	if v, ok := e.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.err = fmt.Errorf("invalid %s %q: %w", key, v, err)
			return
		}
		*dst = b
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2")
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("llm.timeout must be positive")
	}
	if c.LLM.MinInterval < 0 {
		return fmt.Errorf("llm.min_interval must not be negative")
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be positive")
	}
	if c.Embedding.Timeout <= 0 {
		return fmt.Errorf("embedding.timeout must be positive")
	}
	if c.Embedding.BatchSize <= 0 {
		return fmt.Errorf("embedding.batch_size must be positive")
	}
	switch c.Database.Driver {
	case "sqlite", "sqlite3", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite, sqlite3 or postgres, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.HTTP.RequestTimeout <= 0 {
		return fmt.Errorf("http.request_timeout must be positive")
	}
	if c.Retrieval.MaxTopK < 1 {
		return fmt.Errorf("retrieval.max_top_k must be at least 1")
	}
	if c.Retrieval.TopK < 1 || c.Retrieval.TopK > c.Retrieval.MaxTopK {
		return fmt.Errorf("retrieval.top_k must be between 1 and %d", c.Retrieval.MaxTopK)
	}
	switch c.Generation.Mode {
	case "whole", "week_by_week":
	default:
		return fmt.Errorf("generation.mode must be whole or week_by_week, got %q", c.Generation.Mode)
	}
	switch c.Generation.DaysPerWeek {
	case "calendar", "sessions":
	default:
		return fmt.Errorf("generation.days_per_week must be calendar or sessions, got %q", c.Generation.DaysPerWeek)
	}
	return nil
}
