package config

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

// validConfig returns a configuration that passes Validate and ValidateStorage.
func validConfig() *Config {
	return &Config{
		ModelName:            DefaultGeminiModel,
		EmbedderModel:        DefaultGeminiEmbedderModel,
		GeminiAPIKey:         "test-gemini-key-1234567890",
		ParseTemperature:     0.0,
		ReportTemperature:    0.1,
		RecommendTemperature: 0.3,
		MaxReportTokens:      2000,
		MaxRecommendTokens:   1000,
		ClinVarBaseURL:       DefaultClinVarBaseURL,
		MaxSearchResults:     20,
		RetrievalTopK:        5,
		PostgresHost:         "localhost",
		PostgresPort:         5432,
		PostgresUser:         "epiguide",
		PostgresPassword:     "epiguide_dev_password",
		PostgresDBName:       "epiguide",
		PostgresSSLMode:      "disable",
		Addr:                 "127.0.0.1:8080",
	}
}

func TestValidate_OK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate() on valid config: %v", err)
	}
}

func TestValidate_MissingGeminiAPIKey(t *testing.T) {
	cfg := validConfig()
	cfg.GeminiAPIKey = ""

	err := cfg.Validate()
	if !errors.Is(err, ErrMissingGeminiAPIKey) {
		t.Fatalf("expected ErrMissingGeminiAPIKey, got %v", err)
	}
	// The message must name the variable the operator has to set.
	if !strings.Contains(err.Error(), "GEMINI_API_KEY") {
		t.Errorf("error should name GEMINI_API_KEY, got: %v", err)
	}
}

func TestValidate_Ranges(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"empty model", func(c *Config) { c.ModelName = "" }, ErrInvalidModelName},
		{"empty embedder", func(c *Config) { c.EmbedderModel = "" }, ErrInvalidEmbedderModel},
		{"negative temperature", func(c *Config) { c.ParseTemperature = -0.1 }, ErrInvalidTemperature},
		{"temperature too high", func(c *Config) { c.RecommendTemperature = 2.5 }, ErrInvalidTemperature},
		{"zero report tokens", func(c *Config) { c.MaxReportTokens = 0 }, ErrInvalidMaxTokens},
		{"zero recommend tokens", func(c *Config) { c.MaxRecommendTokens = 0 }, ErrInvalidMaxTokens},
		{"relative clinvar URL", func(c *Config) { c.ClinVarBaseURL = "eutils.ncbi.nlm.nih.gov" }, ErrInvalidClinVarBaseURL},
		{"zero search results", func(c *Config) { c.MaxSearchResults = 0 }, ErrInvalidSearchResults},
		{"excessive search results", func(c *Config) { c.MaxSearchResults = 1000 }, ErrInvalidSearchResults},
		{"zero top-k", func(c *Config) { c.RetrievalTopK = 0 }, ErrInvalidTopK},
		{"excessive top-k", func(c *Config) { c.RetrievalTopK = 100 }, ErrInvalidTopK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_NilConfig(t *testing.T) {
	var cfg *Config
	if err := cfg.Validate(); !errors.Is(err, ErrConfigNil) {
		t.Errorf("Validate() on nil = %v, want ErrConfigNil", err)
	}
	if err := cfg.ValidateStorage(); !errors.Is(err, ErrConfigNil) {
		t.Errorf("ValidateStorage() on nil = %v, want ErrConfigNil", err)
	}
}

func TestValidateStorage(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"empty host", func(c *Config) { c.PostgresHost = "" }, ErrInvalidPostgresHost},
		{"zero port", func(c *Config) { c.PostgresPort = 0 }, ErrInvalidPostgresPort},
		{"port too large", func(c *Config) { c.PostgresPort = 70000 }, ErrInvalidPostgresPort},
		{"empty dbname", func(c *Config) { c.PostgresDBName = "" }, ErrInvalidPostgresDBName},
		{"bogus sslmode", func(c *Config) { c.PostgresSSLMode = "maybe" }, ErrInvalidPostgresSSLMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.ValidateStorage(); !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateStorage() = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if err := validConfig().ValidateStorage(); err != nil {
		t.Errorf("ValidateStorage() on valid config: %v", err)
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		check func(t *testing.T, out string)
	}{
		{"empty", "", func(t *testing.T, out string) {
			if out != "" {
				t.Errorf("empty secret should stay empty, got %q", out)
			}
		}},
		{"short fully masked", "secret", func(t *testing.T, out string) {
			if out != maskedValue {
				t.Errorf("short secret should be fully masked, got %q", out)
			}
		}},
		{"long keeps edges", "my_long_secret_key_123", func(t *testing.T, out string) {
			if !strings.HasPrefix(out, "my") || !strings.HasSuffix(out, "23") {
				t.Errorf("long secret should keep first/last 2 chars, got %q", out)
			}
			if strings.Contains(out, "long_secret") {
				t.Errorf("masked output leaked secret body: %q", out)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, maskSecret(tt.in))
		})
	}
}

func TestMarshalJSON_MasksSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.GeminiAPIKey = "gemini-super-secret-value"
	cfg.NCBIAPIKey = "ncbi-super-secret-value"
	cfg.PostgresPassword = "postgres-super-secret-value"

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	out := string(data)
	if strings.Contains(out, "super-secret-value") {
		t.Errorf("marshaled config leaked a secret: %s", out)
	}
	if !strings.Contains(out, maskedValue) {
		t.Errorf("marshaled config should contain mask placeholder: %s", out)
	}
}

func TestString_MasksSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.GeminiAPIKey = "gemini-super-secret-value"

	if strings.Contains(cfg.String(), "super-secret-value") {
		t.Error("String() leaked a secret")
	}
}
