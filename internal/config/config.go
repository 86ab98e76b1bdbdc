// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.oraculo/config.yaml or ./config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: model name, temperature, embedder model
//   - Storage: PostgreSQL connection (knowledge + product catalog)
//   - Memory: SQLite path for per-user conversation history
//   - Sources: Notion integration, PDF directory
//   - Telegram: bot token and webhook URL
//
// Sensitive values (tokens, passwords) are masked in MarshalJSON/String.
// Validation is fail-fast: Load returns an error before any component is
// constructed with a bad value.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingTelegramToken indicates the Telegram bot token is missing.
	ErrMissingTelegramToken = errors.New("missing telegram bot token")

	// ErrInvalidWebhookURL indicates the webhook URL is not an absolute HTTPS URL.
	ErrInvalidWebhookURL = errors.New("invalid webhook URL")

	// ErrInvalidModelName indicates the model name is empty.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidTopK indicates the retrieval top-k is out of range.
	ErrInvalidTopK = errors.New("invalid retrieval top_k")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is empty.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidMemoryPath indicates the SQLite memory path is empty.
	ErrInvalidMemoryPath = errors.New("invalid memory database path")
)

const (
	// DefaultModelName is the default Gemini model for answer generation.
	DefaultModelName = "googleai/gemini-2.5-flash"

	// DefaultEmbedderModel is the default Gemini embedding model.
	DefaultEmbedderModel = "text-embedding-004"

	// DefaultTopK is the default number of context documents per query.
	DefaultTopK = 5

	// MaxTopK bounds retrieval fan-out to keep prompts small.
	MaxTopK = 20

	// DefaultMaxHistoryTurns is the default number of past turns injected
	// into the prompt.
	DefaultMaxHistoryTurns = 10
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON.
type Config struct {
	// AI configuration
	ModelName     string  `mapstructure:"model_name" json:"model_name"`
	Temperature   float32 `mapstructure:"temperature" json:"temperature"`
	EmbedderModel string  `mapstructure:"embedder_model" json:"embedder_model"`

	// Retrieval configuration
	TopK            int  `mapstructure:"top_k" json:"top_k"`
	MaxHistoryTurns int  `mapstructure:"max_history_turns" json:"max_history_turns"`
	RecreateOnLoad  bool `mapstructure:"recreate_on_load" json:"recreate_on_load"`

	// PostgreSQL (pgvector knowledge store + product catalog)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Conversation memory (SQLite)
	MemoryPath string `mapstructure:"memory_path" json:"memory_path"`

	// Notion source
	NotionToken      string `mapstructure:"notion_token" json:"notion_token"` // SENSITIVE
	NotionDatabaseID string `mapstructure:"notion_database_id" json:"notion_database_id"`

	// PDF source
	PDFDir string `mapstructure:"pdf_dir" json:"pdf_dir"`

	// Telegram transport
	TelegramToken      string `mapstructure:"telegram_token" json:"telegram_token"` // SENSITIVE
	TelegramWebhookURL string `mapstructure:"telegram_webhook_url" json:"telegram_webhook_url"`

	// HTTP server
	ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".oraculo")
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
		// Missing config file is fine, defaults + env apply.
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

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	viper.SetDefault("model_name", DefaultModelName)
	viper.SetDefault("temperature", 0.7)
	viper.SetDefault("embedder_model", DefaultEmbedderModel)

	viper.SetDefault("top_k", DefaultTopK)
	viper.SetDefault("max_history_turns", DefaultMaxHistoryTurns)
	viper.SetDefault("recreate_on_load", false)

	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "oraculo")
	viper.SetDefault("postgres_password", "oraculo_dev_password")
	viper.SetDefault("postgres_db_name", "oraculo")
	viper.SetDefault("postgres_ssl_mode", "disable")

	viper.SetDefault("memory_path", filepath.Join("data", "memory.db"))
	viper.SetDefault("pdf_dir", filepath.Join("data", "pdf"))

	viper.SetDefault("listen_addr", "127.0.0.1:8000")
}

// bindEnvVariables binds secrets and deploy-specific values explicitly.
func bindEnvVariables() {
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("telegram_token", "TELEGRAM_BOT_TOKEN")
	mustBind("telegram_webhook_url", "TELEGRAM_WEBHOOK_URL")
	mustBind("notion_token", "NOTION_TOKEN")
	mustBind("notion_database_id", "NOTION_DATABASE_ID")
	mustBind("postgres_password", "POSTGRES_PASSWORD")
	mustBind("postgres_host", "POSTGRES_HOST")
	mustBind("listen_addr", "ORACULO_LISTEN_ADDR")
	mustBind("model_name", "ORACULO_MODEL_NAME")

	// NOTE: GEMINI_API_KEY is read directly by the Genkit GoogleAI plugin,
	// not via Viper.
}

// Validate checks configuration invariants. Fails fast with sentinel errors.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}
	if c.ModelName == "" {
		return ErrInvalidModelName
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: %v (want 0..2)", ErrInvalidTemperature, c.Temperature)
	}
	if c.TopK < 1 || c.TopK > MaxTopK {
		return fmt.Errorf("%w: %d (want 1..%d)", ErrInvalidTopK, c.TopK, MaxTopK)
	}
	if c.PostgresHost == "" {
		return ErrInvalidPostgresHost
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.MemoryPath == "" {
		return ErrInvalidMemoryPath
	}
	if c.TelegramToken == "" {
		return ErrMissingTelegramToken
	}
	if c.TelegramWebhookURL != "" {
		u, err := url.Parse(c.TelegramWebhookURL)
		if err != nil || !u.IsAbs() || u.Scheme != "https" {
			return fmt.Errorf("%w: %q", ErrInvalidWebhookURL, c.TelegramWebhookURL)
		}
	}
	return nil
}

// PostgresDSN returns the keyword/value connection string for pgx.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword,
		c.PostgresDBName, c.PostgresSSLMode)
}

// PostgresURL returns the postgres:// connection URL used by migrations.
func (c *Config) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.PostgresUser), url.QueryEscape(c.PostgresPassword),
		c.PostgresHost, c.PostgresPort, c.PostgresDBName, c.PostgresSSLMode)
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Short secrets are fully
// masked; longer ones keep the first and last two characters for debugging.
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
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	a.TelegramToken = maskSecret(a.TelegramToken)
	a.NotionToken = maskSecret(a.NotionToken)
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
