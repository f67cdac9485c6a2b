// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.epiguide/config.yaml or ./config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - LLM: model selection, per-step temperature, max tokens, embedder
//   - ClinVar: E-utilities base URL, optional API key, result cap
//   - Storage: PostgreSQL connection for the guideline corpus (see storage.go)
//   - Serve: HTTP listen address
//   - Observability: optional OTLP trace export
//
// Security: sensitive values (API keys, passwords) are masked in MarshalJSON/String.
// Validation: fail-fast with sentinel errors; a missing credential is reported
// by the environment variable name the operator must set.
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

	// ErrMissingGeminiAPIKey indicates GEMINI_API_KEY is not set.
	ErrMissingGeminiAPIKey = errors.New("missing GEMINI_API_KEY")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates a temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates a max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidClinVarBaseURL indicates the ClinVar base URL is invalid.
	ErrInvalidClinVarBaseURL = errors.New("invalid ClinVar base URL")

	// ErrInvalidSearchResults indicates the ClinVar result cap is out of range.
	ErrInvalidSearchResults = errors.New("invalid max search results")

	// ErrInvalidTopK indicates the retrieval top-k is out of range.
	ErrInvalidTopK = errors.New("invalid retrieval top-k")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

const (
	// DefaultGeminiModel is the chat model used for parsing, reporting and
	// treatment synthesis.
	DefaultGeminiModel = "gemini-2.5-flash"

	// DefaultGeminiEmbedderModel is the default Gemini embedder model.
	// text-embedding-004 outputs 768 dimensions, matching the pgvector
	// schema (see guideline.VectorDimension).
	DefaultGeminiEmbedderModel = "text-embedding-004"

	// DefaultClinVarBaseURL is the NCBI E-utilities endpoint root.
	DefaultClinVarBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"
)

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (passwords, API keys, tokens), update MarshalJSON.
type Config struct {
	// LLM configuration
	ModelName     string `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`
	GeminiAPIKey  string `mapstructure:"gemini_api_key" json:"gemini_api_key"` // SENSITIVE: masked in MarshalJSON

	// Per-step generation settings. Parsing wants determinism, the clinician
	// report tolerates a little variation, treatment synthesis the most.
	ParseTemperature     float32 `mapstructure:"parse_temperature" json:"parse_temperature"`
	ReportTemperature    float32 `mapstructure:"report_temperature" json:"report_temperature"`
	RecommendTemperature float32 `mapstructure:"recommend_temperature" json:"recommend_temperature"`
	MaxReportTokens      int     `mapstructure:"max_report_tokens" json:"max_report_tokens"`
	MaxRecommendTokens   int     `mapstructure:"max_recommend_tokens" json:"max_recommend_tokens"`

	// ClinVar configuration
	ClinVarBaseURL   string `mapstructure:"clinvar_base_url" json:"clinvar_base_url"`
	NCBIAPIKey       string `mapstructure:"ncbi_api_key" json:"ncbi_api_key"` // SENSITIVE: masked in MarshalJSON; optional
	MaxSearchResults int    `mapstructure:"max_search_results" json:"max_search_results"`

	// Guideline retrieval configuration
	RetrievalTopK int `mapstructure:"retrieval_top_k" json:"retrieval_top_k"`

	// Storage configuration (see storage.go for documentation)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Serve configuration
	Addr string `mapstructure:"addr" json:"addr"`

	// Observability configuration (serve mode only; empty endpoint disables)
	OTLPEndpoint string `mapstructure:"otlp_endpoint" json:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name" json:"service_name"`
	Environment  string `mapstructure:"environment" json:"environment"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".epiguide")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults()
	bindEnvVariables()

	// Read configuration file (if exists)
	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	// Fail-fast: a broken config should never reach the pipeline
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// LLM defaults
	viper.SetDefault("model_name", DefaultGeminiModel)
	viper.SetDefault("embedder_model", DefaultGeminiEmbedderModel)
	viper.SetDefault("parse_temperature", 0.0)
	viper.SetDefault("report_temperature", 0.1)
	viper.SetDefault("recommend_temperature", 0.3)
	viper.SetDefault("max_report_tokens", 2000)
	viper.SetDefault("max_recommend_tokens", 1000)

	// ClinVar defaults
	viper.SetDefault("clinvar_base_url", DefaultClinVarBaseURL)
	viper.SetDefault("max_search_results", 20)

	// Retrieval defaults
	viper.SetDefault("retrieval_top_k", 5)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "epiguide")
	viper.SetDefault("postgres_password", "epiguide_dev_password")
	viper.SetDefault("postgres_db_name", "epiguide")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Serve defaults
	viper.SetDefault("addr", "127.0.0.1:8080")

	// Observability defaults (disabled until an endpoint is configured)
	viper.SetDefault("otlp_endpoint", "")
	viper.SetDefault("service_name", "epiguide")
	viper.SetDefault("environment", "dev")
}

// bindEnvVariables binds environment variables explicitly.
// Secrets come only from the environment, never from the config file search path:
//  1. GEMINI_API_KEY - chat + embedding credential (required)
//  2. NCBI_API_KEY - raises the E-utilities rate limit (optional)
//  3. DATABASE_URL - handled separately in parseDatabaseURL
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail)
	// If this panics, it's a BUG in our code, not a runtime error
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("gemini_api_key", "GEMINI_API_KEY")
	mustBind("ncbi_api_key", "NCBI_API_KEY")

	// Non-secret overrides
	mustBind("model_name", "EPIGUIDE_MODEL_NAME")
	mustBind("embedder_model", "EPIGUIDE_EMBEDDER_MODEL")
	mustBind("addr", "EPIGUIDE_ADDR")
	mustBind("otlp_endpoint", "EPIGUIDE_OTLP_ENDPOINT")
	mustBind("environment", "EPIGUIDE_ENVIRONMENT")
}

// Validate checks the configuration needed by every command.
// Storage settings are checked separately in ValidateStorage because the
// lookup-only path never touches PostgreSQL.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if c.GeminiAPIKey == "" {
		return fmt.Errorf("%w: set the GEMINI_API_KEY environment variable", ErrMissingGeminiAPIKey)
	}
	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name must not be empty", ErrInvalidModelName)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model must not be empty", ErrInvalidEmbedderModel)
	}

	for name, temp := range map[string]float32{
		"parse_temperature":     c.ParseTemperature,
		"report_temperature":    c.ReportTemperature,
		"recommend_temperature": c.RecommendTemperature,
	} {
		if temp < 0 || temp > 2 {
			return fmt.Errorf("%w: %s must be in [0, 2], got %v", ErrInvalidTemperature, name, temp)
		}
	}

	if c.MaxReportTokens < 1 || c.MaxReportTokens > 65536 {
		return fmt.Errorf("%w: max_report_tokens must be in [1, 65536], got %d", ErrInvalidMaxTokens, c.MaxReportTokens)
	}
	if c.MaxRecommendTokens < 1 || c.MaxRecommendTokens > 65536 {
		return fmt.Errorf("%w: max_recommend_tokens must be in [1, 65536], got %d", ErrInvalidMaxTokens, c.MaxRecommendTokens)
	}

	u, err := url.Parse(c.ClinVarBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidClinVarBaseURL, c.ClinVarBaseURL)
	}
	if c.MaxSearchResults < 1 || c.MaxSearchResults > 500 {
		return fmt.Errorf("%w: max_search_results must be in [1, 500], got %d", ErrInvalidSearchResults, c.MaxSearchResults)
	}

	if c.RetrievalTopK < 1 || c.RetrievalTopK > 50 {
		return fmt.Errorf("%w: retrieval_top_k must be in [1, 50], got %d", ErrInvalidTopK, c.RetrievalTopK)
	}

	return nil
}

// validSSLModes are the sslmode values accepted by libpq/pgx.
var validSSLModes = map[string]bool{
	"disable":     true,
	"allow":       true,
	"prefer":      true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

// ValidateStorage checks the PostgreSQL settings. Called by commands that
// need the guideline corpus (serve, ingest, plan); the error names the
// DATABASE_URL override so operators know the single-variable fix.
func (c *Config) ValidateStorage() error {
	if c == nil {
		return ErrConfigNil
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("%w: postgres_host must not be empty (or set DATABASE_URL)", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: postgres_port must be in [1, 65535], got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: postgres_db_name must not be empty (or set DATABASE_URL)", ErrInvalidPostgresDBName)
	}
	if !validSSLModes[c.PostgresSSLMode] {
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}

	return nil
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks (U+2588) avoid accidental substring matches against
// real secret material in log-scanning tools.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Shows first 2 and last 2 characters for secrets longer than 8 chars,
// fully masks shorter ones.
//
// THREAT MODEL: this defends against accidental logging of real secrets.
// It is NOT cryptographically secure - if logs are compromised, rotate secrets.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	prefix := make([]byte, 2)
	suffix := make([]byte, 2)
	copy(prefix, s[:2])
	copy(suffix, s[len(s)-2:])
	return string(prefix) + "<" + maskedValue + ">" + string(suffix)
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - GeminiAPIKey
//   - NCBIAPIKey
//   - PostgresPassword
//
// When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.GeminiAPIKey = maskSecret(a.GeminiAPIKey)
	a.NCBIAPIKey = maskSecret(a.NCBIAPIKey)
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
