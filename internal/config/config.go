// Package config loads runtime configuration from the environment with an
// optional YAML file overlay.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider identifies an LLM or embedding backend.
type Provider string

const (
	ProviderOllama    Provider = "ollama"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// Config holds all configuration values.
type Config struct {
	// SurrealDB connection
	SurrealDBURL       string `yaml:"surrealdb_url"`
	SurrealDBNamespace string `yaml:"surrealdb_namespace"`
	SurrealDBDatabase  string `yaml:"surrealdb_database"`
	SurrealDBUser      string `yaml:"surrealdb_user"`
	SurrealDBPass      string `yaml:"surrealdb_pass"`
	SurrealDBAuthLevel string `yaml:"surrealdb_auth_level"`

	// Message broker. Empty URL runs broker-less with the in-memory channel.
	AMQPURL    string `yaml:"amqp_url"`
	JobsTarget string `yaml:"jobs_target"`

	// LLM generation
	LLMProvider     Provider `yaml:"llm_provider"`
	LLMModel        string   `yaml:"llm_model"`
	OllamaHost      string   `yaml:"ollama_host"`
	OpenAIAPIKey    string   `yaml:"openai_api_key"`
	AnthropicAPIKey string   `yaml:"anthropic_api_key"`

	// Embeddings
	EmbedProvider  Provider `yaml:"embed_provider"`
	EmbedModel     string   `yaml:"embed_model"`
	EmbedDimension int      `yaml:"embed_dimension"`

	// Pipeline behavior
	DedupEnabled   bool          `yaml:"dedup_enabled"`
	DedupThreshold float64       `yaml:"dedup_threshold"`
	Workers        int           `yaml:"workers"`
	MaxRetries     int           `yaml:"max_retries"`
	SweepInterval  time.Duration `yaml:"sweep_interval"`

	// Logging
	LogFile  string     `yaml:"log_file"`
	LogLevel slog.Level `yaml:"-"`
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		SurrealDBURL:       getEnv("KNOGRAPH_SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("KNOGRAPH_SURREALDB_NAMESPACE", "knograph"),
		SurrealDBDatabase:  getEnv("KNOGRAPH_SURREALDB_DATABASE", "graph"),
		SurrealDBUser:      getEnv("KNOGRAPH_SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("KNOGRAPH_SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("KNOGRAPH_SURREALDB_AUTH_LEVEL", "root"),

		AMQPURL:    getEnv("KNOGRAPH_AMQP_URL", ""),
		JobsTarget: getEnv("KNOGRAPH_JOBS_TARGET", "knograph.jobs"),

		LLMProvider:     Provider(getEnv("KNOGRAPH_LLM_PROVIDER", "ollama")),
		LLMModel:        getEnv("KNOGRAPH_LLM_MODEL", "llama3.1:8b"),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),

		EmbedProvider:  Provider(getEnv("KNOGRAPH_EMBED_PROVIDER", "ollama")),
		EmbedModel:     getEnv("KNOGRAPH_EMBED_MODEL", "all-minilm:l6-v2"),
		EmbedDimension: getEnvInt("KNOGRAPH_EMBED_DIMENSION", 384),

		DedupEnabled:   getEnv("KNOGRAPH_DEDUP_ENABLED", "false") == "true",
		DedupThreshold: getEnvFloat("KNOGRAPH_DEDUP_THRESHOLD", 0.92),
		Workers:        getEnvInt("KNOGRAPH_WORKERS", 4),
		MaxRetries:     getEnvInt("KNOGRAPH_MAX_RETRIES", 3),
		SweepInterval:  getEnvDuration("KNOGRAPH_SWEEP_INTERVAL", 30*time.Second),

		LogFile:  getEnv("KNOGRAPH_LOG_FILE", "/tmp/knograph.log"),
		LogLevel: parseLogLevel(getEnv("KNOGRAPH_LOG_LEVEL", "INFO")),
	}
}

// LoadFile overlays values from a YAML file onto cfg. Unset file fields keep
// their current values.
func LoadFile(cfg Config, path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
