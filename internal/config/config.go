// Package config provides application configuration with multi-source
// priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.nigel/config.yaml)
//  3. Default values
//
// Categories:
//   - Providers: Gemini embeddings, Claude completion models (fast/deep tiers)
//   - Storage: PostgreSQL connection (see storage.go)
//   - Retrieval: default confidence threshold, embedding dimension
//   - Observability: OTLP trace export (see observability.go)
//
// Sensitive values (passwords, API keys) are masked in MarshalJSON and
// String; validation lives in validation.go and returns sentinel errors
// usable with errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates a completion model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidEmbeddingDimension indicates the embedding dimension does
	// not match the vector schema.
	ErrInvalidEmbeddingDimension = errors.New("invalid embedding dimension")

	// ErrInvalidConfidence indicates the default confidence threshold is
	// out of range.
	ErrInvalidConfidence = errors.New("invalid confidence threshold")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresPassword indicates the PostgreSQL password is invalid.
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

const (
	// DefaultEmbedderModel outputs 3072 dimensions by default but supports
	// truncation to 768 via OutputDimensionality. The pgvector schema uses
	// 768; see the embedding_dimension setting.
	DefaultEmbedderModel = "gemini-embedding-001"

	// EmbeddingDimension is the vector width of the chunk index.
	EmbeddingDimension int32 = 768

	// DefaultFastModel answers simple queries.
	DefaultFastModel = "claude-haiku-4-5-20251001"

	// DefaultDeepModel answers multi-framework and causal queries.
	DefaultDeepModel = "claude-sonnet-4-5-20250929"
)

// Config stores application configuration.
// Sensitive fields are explicitly masked in MarshalJSON; when adding a
// new secret field, update that method.
type Config struct {
	// Provider API keys (environment only, never from the config file)
	GeminiAPIKey    string `mapstructure:"gemini_api_key" json:"gemini_api_key"`       // SENSITIVE: masked in MarshalJSON
	AnthropicAPIKey string `mapstructure:"anthropic_api_key" json:"anthropic_api_key"` // SENSITIVE: masked in MarshalJSON

	// Completion model tiers
	FastModel string `mapstructure:"fast_model" json:"fast_model"`
	DeepModel string `mapstructure:"deep_model" json:"deep_model"`

	// Embedding configuration
	EmbedderModel      string `mapstructure:"embedder_model" json:"embedder_model"`
	EmbeddingDimension int32  `mapstructure:"embedding_dimension" json:"embedding_dimension"`

	// Retrieval configuration. DefaultConfidence is only a fallback for
	// fresh databases; the live threshold lives in the config table.
	DefaultConfidence float64 `mapstructure:"default_confidence" json:"default_confidence"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Logging
	LogLevel string `mapstructure:"log_level" json:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`

	// Observability configuration (see observability.go)
	Telemetry TelemetryConfig `mapstructure:"telemetry" json:"telemetry"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".nigel")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine, the defaults carry it.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("fast_model", DefaultFastModel)
	viper.SetDefault("deep_model", DefaultDeepModel)

	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("embedding_dimension", EmbeddingDimension)

	viper.SetDefault("default_confidence", 0.5)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "nigel")
	viper.SetDefault("postgres_password", "nigel_dev_password")
	viper.SetDefault("postgres_db_name", "nigel")
	viper.SetDefault("postgres_ssl_mode", "disable")

	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_json", false)

	viper.SetDefault("telemetry.endpoint", "localhost:4318")
	viper.SetDefault("telemetry.environment", "dev")
	viper.SetDefault("telemetry.service_name", "nigel")
	viper.SetDefault("telemetry.enabled", false)
}

// bindEnvVariables binds environment variables explicitly. API keys are
// environment-only so they never end up in a config file by accident.
func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("gemini_api_key", "GEMINI_API_KEY")
	mustBind("anthropic_api_key", "ANTHROPIC_API_KEY")

	mustBind("fast_model", "NIGEL_FAST_MODEL")
	mustBind("deep_model", "NIGEL_DEEP_MODEL")
	mustBind("embedder_model", "NIGEL_EMBEDDER_MODEL")
	mustBind("default_confidence", "NIGEL_DEFAULT_CONFIDENCE")

	mustBind("log_level", "NIGEL_LOG_LEVEL")
	mustBind("log_json", "NIGEL_LOG_JSON")

	mustBind("telemetry.enabled", "NIGEL_TELEMETRY_ENABLED")
	mustBind("telemetry.endpoint", "NIGEL_TELEMETRY_ENDPOINT")
}

// maskedValue is the placeholder for masked sensitive data. Full-width
// blocks so no real password substring can survive masking.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Secrets of eight
// characters or fewer are fully masked; longer ones keep the first and
// last two characters for debug utility. This defends against
// accidental logging, not against compromised logs.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
// Masked: GeminiAPIKey, AnthropicAPIKey, PostgresPassword.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.GeminiAPIKey = maskSecret(a.GeminiAPIKey)
	a.AnthropicAPIKey = maskSecret(a.AnthropicAPIKey)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
